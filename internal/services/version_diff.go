package services

import "github.com/maynagashev/gophblog/internal/models"

// DiffVersions сравнивает два снимка по полям заголовка, текста, описания и тегов.
// Результат не зависит от порядка аргументов, кроме того, какой снимок будет Version1.
func DiffVersions(v1, v2 *models.PostVersion) models.VersionComparison {
	return models.VersionComparison{
		Version1:       v1,
		Version2:       v2,
		TitleChanged:   v1.Title != v2.Title,
		ContentChanged: v1.Content != v2.Content,
		SummaryChanged: !sameString(v1.Summary, v2.Summary),
		TagsChanged:    !sameString(v1.Tags, v2.Tags),
	}
}

// sameString сравнивает строки с учетом NULL: два NULL равны, NULL и значение - нет.
func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
