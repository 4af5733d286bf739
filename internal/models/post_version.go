package models

import "time"

// PostVersion представляет неизменяемый снимок статьи на момент сохранения.
// Номер версии уникален в пределах статьи и идет подряд, начиная с 1.
type PostVersion struct {
	ID      int64  `db:"id" json:"id"`
	PostID  int64  `db:"post_id" json:"post_id"` // Ссылка на статью (не внешний ключ)
	Version int    `db:"version" json:"version"`
	Title   string `db:"title" json:"title"`
	Content string `db:"content" json:"content"`
	// Необязательные поля копируются как есть, включая NULL.
	Summary    *string   `db:"summary" json:"summary,omitempty"`
	CoverImage *string   `db:"cover_image" json:"cover_image,omitempty"`
	Tags       *string   `db:"tags" json:"tags,omitempty"`
	ChangeNote *string   `db:"change_note" json:"change_note,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	// Автор копируется в снимок вместе с остальными полями.
	CreatedBy         *int64  `db:"created_by" json:"created_by,omitempty"`
	CreatedByUsername *string `db:"created_by_username" json:"created_by_username,omitempty"`
}

// NewPostVersion собирает снимок из текущего состояния статьи.
// Номер версии назначается позже, внутри транзакции хранилища.
func NewPostVersion(post *Post, changeNote *string) *PostVersion {
	v := &PostVersion{
		PostID:     post.ID,
		Title:      post.Title,
		Content:    post.Content,
		Summary:    cloneString(post.Summary),
		CoverImage: cloneString(post.CoverImage),
		Tags:       cloneString(post.Tags),
		ChangeNote: cloneString(changeNote),
	}
	if post.AuthorID != 0 {
		authorID := post.AuthorID
		v.CreatedBy = &authorID
	}
	if post.AuthorUsername != "" {
		username := post.AuthorUsername
		v.CreatedByUsername = &username
	}
	return v
}

// DeepCopy возвращает независимую копию снимка.
func (v *PostVersion) DeepCopy() *PostVersion {
	if v == nil {
		return nil
	}

	c := *v
	c.Summary = cloneString(v.Summary)
	c.CoverImage = cloneString(v.CoverImage)
	c.Tags = cloneString(v.Tags)
	c.ChangeNote = cloneString(v.ChangeNote)
	c.CreatedByUsername = cloneString(v.CreatedByUsername)
	if v.CreatedBy != nil {
		createdBy := *v.CreatedBy
		c.CreatedBy = &createdBy
	}
	return &c
}

// VersionStats содержит сводку по истории статьи.
type VersionStats struct {
	PostID        int64 `json:"post_id"`
	TotalVersions int64 `json:"total_versions"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
