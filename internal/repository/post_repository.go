package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/maynagashev/gophblog/internal/logging"
	"github.com/maynagashev/gophblog/internal/models"
)

// PostRepository определяет методы для работы с живыми статьями.
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	UpdatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, postID int64) (*models.Post, error)
	DeletePost(ctx context.Context, postID int64) error
}

const postColumns = `id, title, content, summary, cover_image, tags, published,` +
	` author_id, author_username, created_at, updated_at`

// postgresPostRepository реализует PostRepository для PostgreSQL.
type postgresPostRepository struct {
	db  *sqlx.DB
	log logging.Logger
}

// NewPostgresPostRepository создает новый экземпляр репозитория статей.
func NewPostgresPostRepository(db *sqlx.DB) PostRepository {
	return &postgresPostRepository{db: db, log: logging.New("repository")}
}

// CreatePost сохраняет новую статью и заполняет ID и временные метки.
func (r *postgresPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	query := `INSERT INTO posts (title, content, summary, cover_image, tags, published, author_id, author_username)` +
		` VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		post.Title, post.Content, post.Summary, post.CoverImage, post.Tags, post.Published,
		post.AuthorID, post.AuthorUsername,
	).Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		r.log.Errorf("[PostRepo] Ошибка при создании статьи '%s': %v", post.Title, err)
		return fmt.Errorf("ошибка выполнения запроса на создание статьи: %w", err)
	}

	r.log.Infof("[PostRepo] Статья создана с ID %d", post.ID)
	return nil
}

// UpdatePost обновляет редактируемые поля статьи.
func (r *postgresPostRepository) UpdatePost(ctx context.Context, post *models.Post) error {
	query := `UPDATE posts SET title=$1, content=$2, summary=$3, cover_image=$4, tags=$5, published=$6,` +
		` updated_at=now() WHERE id=$7 RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		post.Title, post.Content, post.Summary, post.CoverImage, post.Tags, post.Published, post.ID,
	).Scan(&post.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPostNotFound
		}
		r.log.Errorf("[PostRepo] Ошибка при обновлении статьи ID %d: %v", post.ID, err)
		return fmt.Errorf("ошибка выполнения запроса на обновление статьи: %w", err)
	}
	return nil
}

// GetPostByID находит статью по ID.
func (r *postgresPostRepository) GetPostByID(ctx context.Context, postID int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id=$1`
	var post models.Post

	err := r.db.GetContext(ctx, &post, query, postID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Debugf("[PostRepo] Статья ID %d не найдена", postID)
			return nil, ErrPostNotFound
		}
		r.log.Errorf("[PostRepo] Ошибка при поиске статьи ID %d: %v", postID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение статьи: %w", err)
	}
	return &post, nil
}

// DeletePost удаляет статью. История версий не затрагивается.
func (r *postgresPostRepository) DeletePost(ctx context.Context, postID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id=$1`, postID)
	if err != nil {
		r.log.Errorf("[PostRepo] Ошибка при удалении статьи ID %d: %v", postID, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление статьи: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения числа удаленных строк: %w", err)
	}
	if affected == 0 {
		return ErrPostNotFound
	}

	r.log.Infof("[PostRepo] Статья ID %d удалена", postID)
	return nil
}

// Кастомная ошибка репозитория статей.
var (
	ErrPostNotFound = errors.New("статья не найдена")
)
