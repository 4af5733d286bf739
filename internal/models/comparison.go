package models

import "encoding/json"

// VersionComparison - результат сравнения двух снимков статьи по полям.
// Это признаки изменений, а не построчный дифф.
type VersionComparison struct {
	Version1       *PostVersion `json:"version1"`
	Version2       *PostVersion `json:"version2"`
	TitleChanged   bool         `json:"title_changed"`
	ContentChanged bool         `json:"content_changed"`
	SummaryChanged bool         `json:"summary_changed"`
	TagsChanged    bool         `json:"tags_changed"`
}

// HasChanges сообщает, отличается ли хотя бы одно из сравниваемых полей.
func (c VersionComparison) HasChanges() bool {
	return c.TitleChanged || c.ContentChanged || c.SummaryChanged || c.TagsChanged
}

// MarshalJSON добавляет в ответ вычисляемое поле has_changes.
func (c VersionComparison) MarshalJSON() ([]byte, error) {
	type plain VersionComparison
	return json.Marshal(struct {
		plain
		HasChanges bool `json:"has_changes"`
	}{
		plain:      plain(c),
		HasChanges: c.HasChanges(),
	})
}
