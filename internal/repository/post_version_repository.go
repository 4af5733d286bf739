package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/maynagashev/gophblog/internal/logging"
	"github.com/maynagashev/gophblog/internal/models"
)

// PostVersionRepository определяет методы хранилища снимков статей.
// Снимки только добавляются; удалить можно лишь всю историю статьи целиком.
type PostVersionRepository interface {
	// WithinVersionTx выполняет fn в пишущей транзакции, сериализованной по статье.
	WithinVersionTx(ctx context.Context, postID int64, fn func(tx PostVersionTx) error) error
	// ListVersionsByPostID возвращает версии от новых к старым. limit <= 0 - без ограничения.
	ListVersionsByPostID(ctx context.Context, postID int64, limit, offset int) ([]models.PostVersion, error)
	GetVersion(ctx context.Context, postID int64, version int) (*models.PostVersion, error)
	GetLatestVersion(ctx context.Context, postID int64) (*models.PostVersion, error)
	CountVersionsByPostID(ctx context.Context, postID int64) (int64, error)
	DeleteVersionsByPostID(ctx context.Context, postID int64) (int64, error)
}

// PostVersionTx - операции, доступные внутри пишущей транзакции.
type PostVersionTx interface {
	// LatestVersionNumber возвращает максимальный номер версии или 0.
	LatestVersionNumber(ctx context.Context, postID int64) (int, error)
	// InsertVersion сохраняет снимок и заполняет ID и CreatedAt.
	// При совпадении (post_id, version) возвращает ErrDuplicateVersion.
	InsertVersion(ctx context.Context, version *models.PostVersion) error
}

const versionColumns = `id, post_id, version, title, content, summary, cover_image, tags,` +
	` change_note, created_at, created_by, created_by_username`

// postgresPostVersionRepository реализует PostVersionRepository для PostgreSQL.
type postgresPostVersionRepository struct {
	db  *sqlx.DB
	log logging.Logger
}

// NewPostgresPostVersionRepository создает новый экземпляр репозитория версий.
func NewPostgresPostVersionRepository(db *sqlx.DB) PostVersionRepository {
	return &postgresPostVersionRepository{db: db, log: logging.New("repository")}
}

// WithinVersionTx открывает транзакцию и берет advisory-блокировку по ID статьи.
// Блокировка снимается при завершении транзакции. Разные статьи друг друга не блокируют.
func (r *postgresPostVersionRepository) WithinVersionTx(
	ctx context.Context,
	postID int64,
	fn func(tx PostVersionTx) error,
) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.log.Warnf("[PostVerRepo] Ошибка отката транзакции для статьи ID %d: %v", postID, rbErr)
		}
	}()

	if err = lockPost(ctx, tx, postID); err != nil {
		return err
	}

	if err = fn(&postgresPostVersionTx{tx: tx, log: r.log}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateVersion
		}
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	committed = true
	return nil
}

// ListVersionsByPostID возвращает список версий статьи с пагинацией.
func (r *postgresPostVersionRepository) ListVersionsByPostID(
	ctx context.Context,
	postID int64,
	limit,
	offset int,
) ([]models.PostVersion, error) {
	var (
		query string
		args  []any
	)
	if limit > 0 {
		query = `SELECT ` + versionColumns + ` FROM post_versions WHERE post_id=$1` +
			` ORDER BY version DESC LIMIT $2 OFFSET $3`
		args = []any{postID, limit, offset}
	} else {
		query = `SELECT ` + versionColumns + ` FROM post_versions WHERE post_id=$1 ORDER BY version DESC`
		args = []any{postID}
	}

	versions := make([]models.PostVersion, 0, max(limit, 0))
	if err := r.db.SelectContext(ctx, &versions, query, args...); err != nil {
		r.log.Errorf("[PostVerRepo] Ошибка при получении списка версий для статьи ID %d: %v", postID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение списка версий: %w", err)
	}

	r.log.Debugf("[PostVerRepo] Получено %d версий для статьи ID %d (limit=%d, offset=%d)",
		len(versions), postID, limit, offset)
	return versions, nil
}

// GetVersion находит версию статьи по номеру.
func (r *postgresPostVersionRepository) GetVersion(
	ctx context.Context,
	postID int64,
	version int,
) (*models.PostVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM post_versions WHERE post_id=$1 AND version=$2`
	var v models.PostVersion

	err := r.db.GetContext(ctx, &v, query, postID, version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Debugf("[PostVerRepo] Версия %d статьи ID %d не найдена", version, postID)
			return nil, ErrVersionNotFound
		}
		r.log.Errorf("[PostVerRepo] Ошибка при поиске версии %d статьи ID %d: %v", version, postID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение версии: %w", err)
	}
	return &v, nil
}

// GetLatestVersion возвращает последнюю версию статьи.
func (r *postgresPostVersionRepository) GetLatestVersion(
	ctx context.Context,
	postID int64,
) (*models.PostVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM post_versions WHERE post_id=$1 ORDER BY version DESC LIMIT 1`
	var v models.PostVersion

	err := r.db.GetContext(ctx, &v, query, postID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVersionNotFound
		}
		r.log.Errorf("[PostVerRepo] Ошибка при поиске последней версии статьи ID %d: %v", postID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение последней версии: %w", err)
	}
	return &v, nil
}

// CountVersionsByPostID возвращает количество версий статьи.
func (r *postgresPostVersionRepository) CountVersionsByPostID(ctx context.Context, postID int64) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM post_versions WHERE post_id=$1`, postID)
	if err != nil {
		r.log.Errorf("[PostVerRepo] Ошибка подсчета версий статьи ID %d: %v", postID, err)
		return 0, fmt.Errorf("ошибка выполнения запроса на подсчет версий: %w", err)
	}
	return count, nil
}

// DeleteVersionsByPostID удаляет всю историю статьи и возвращает число удаленных версий.
// Берет ту же блокировку, что и сохранение, чтобы удаление не перемешалось со вставкой.
func (r *postgresPostVersionRepository) DeleteVersionsByPostID(ctx context.Context, postID int64) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.log.Warnf("[PostVerRepo] Ошибка отката транзакции удаления для статьи ID %d: %v", postID, rbErr)
		}
	}()

	if err = lockPost(ctx, tx, postID); err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM post_versions WHERE post_id=$1`, postID)
	if err != nil {
		r.log.Errorf("[PostVerRepo] Ошибка удаления истории статьи ID %d: %v", postID, err)
		return 0, fmt.Errorf("ошибка выполнения запроса на удаление истории: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ошибка получения числа удаленных версий: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("ошибка фиксации транзакции удаления: %w", err)
	}

	r.log.Infof("[PostVerRepo] Удалено %d версий статьи ID %d", deleted, postID)
	return deleted, nil
}

// postgresPostVersionTx реализует PostVersionTx поверх sqlx.Tx.
type postgresPostVersionTx struct {
	tx  *sqlx.Tx
	log logging.Logger
}

func (t *postgresPostVersionTx) LatestVersionNumber(ctx context.Context, postID int64) (int, error) {
	var latest int
	err := t.tx.GetContext(ctx, &latest,
		`SELECT COALESCE(MAX(version), 0) FROM post_versions WHERE post_id=$1`, postID)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения последнего номера версии: %w", err)
	}
	return latest, nil
}

func (t *postgresPostVersionTx) InsertVersion(ctx context.Context, v *models.PostVersion) error {
	query := `INSERT INTO post_versions (post_id, version, title, content, summary, cover_image, tags,` +
		` change_note, created_by, created_by_username)` +
		` VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id, created_at`

	err := t.tx.QueryRowxContext(ctx, query,
		v.PostID, v.Version, v.Title, v.Content, v.Summary, v.CoverImage, v.Tags,
		v.ChangeNote, v.CreatedBy, v.CreatedByUsername,
	).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			t.log.Warnf("[PostVerRepo] Версия %d статьи ID %d уже существует", v.Version, v.PostID)
			return ErrDuplicateVersion
		}
		t.log.Errorf("[PostVerRepo] Непредвиденная ошибка при создании версии %d статьи ID %d: %v",
			v.Version, v.PostID, err)
		return fmt.Errorf("ошибка выполнения запроса на создание версии: %w", err)
	}

	t.log.Infof("[PostVerRepo] Версия %d (ID: %d) создана для статьи ID %d", v.Version, v.ID, v.PostID)
	return nil
}

func lockPost(ctx context.Context, tx *sqlx.Tx, postID int64) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, postID); err != nil {
		return fmt.Errorf("ошибка блокировки истории статьи %d: %w", postID, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode
}

// Кастомные ошибки репозитория версий.
var (
	ErrVersionNotFound  = errors.New("версия статьи не найдена")
	ErrDuplicateVersion = errors.New("версия статьи с таким номером уже существует")
)
