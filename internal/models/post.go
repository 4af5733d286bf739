package models

import "time"

// Post представляет живую (изменяемую) статью блога.
// История ее изменений хранится отдельно в виде PostVersion.
type Post struct {
	ID             int64     `db:"id" json:"id"`
	Title          string    `db:"title" json:"title"`
	Content        string    `db:"content" json:"content"`
	Summary        *string   `db:"summary" json:"summary,omitempty"`
	CoverImage     *string   `db:"cover_image" json:"cover_image,omitempty"`
	Tags           *string   `db:"tags" json:"tags,omitempty"`
	Published      bool      `db:"published" json:"published"`
	AuthorID       int64     `db:"author_id" json:"author_id"`
	AuthorUsername string    `db:"author_username" json:"author_username"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// DeepCopy возвращает независимую копию статьи.
func (p *Post) DeepCopy() *Post {
	if p == nil {
		return nil
	}

	c := *p
	c.Summary = cloneString(p.Summary)
	c.CoverImage = cloneString(p.CoverImage)
	c.Tags = cloneString(p.Tags)
	return &c
}

// SavePostRequest представляет тело запроса на создание или изменение статьи.
type SavePostRequest struct {
	Title      string  `json:"title" validate:"required,max=200"`
	Content    string  `json:"content" validate:"required"`
	Summary    *string `json:"summary,omitempty" validate:"omitempty,max=500"`
	CoverImage *string `json:"cover_image,omitempty" validate:"omitempty,max=500"`
	Tags       *string `json:"tags,omitempty" validate:"omitempty,max=1000"`
	Published  bool    `json:"published"`
	ChangeNote *string `json:"change_note,omitempty" validate:"omitempty,max=200"`
}

// Author описывает автора правки, полученного из токена.
type Author struct {
	ID       int64
	Username string
}
