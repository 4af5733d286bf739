// Package memory реализует хранилища статей и их версий в памяти на go-memdb.
// Используется для локального запуска и в тестах.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-memdb"

	"github.com/maynagashev/gophblog/internal/models"
	"github.com/maynagashev/gophblog/internal/repository"
)

var (
	_ repository.PostRepository        = (*DB)(nil)
	_ repository.PostVersionRepository = (*DB)(nil)
)

// DB - база данных в памяти.
// Пишущие транзакции memdb выполняются строго по одной, поэтому чтение
// последнего номера и вставка внутри WithinVersionTx атомарны.
type DB struct {
	db            *memdb.MemDB
	lastPostID    atomic.Int64
	lastVersionID atomic.Int64
}

// New возвращает новую базу данных в памяти.
func New() (*DB, error) {
	memDB, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}

	return &DB{db: memDB}, nil
}

// CreatePost сохраняет новую статью.
func (d *DB) CreatePost(_ context.Context, post *models.Post) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	now := time.Now()
	post.ID = d.lastPostID.Add(1)
	post.CreatedAt = now
	post.UpdatedAt = now

	if err := txn.Insert(tblPosts, post.DeepCopy()); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	txn.Commit()
	return nil
}

// UpdatePost обновляет редактируемые поля статьи.
func (d *DB) UpdatePost(_ context.Context, post *models.Post) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblPosts, "id", post.ID)
	if err != nil {
		return fmt.Errorf("find post %d: %w", post.ID, err)
	}
	if raw == nil {
		return repository.ErrPostNotFound
	}

	stored := raw.(*models.Post).DeepCopy()
	stored.Title = post.Title
	stored.Content = post.Content
	stored.Summary = post.Summary
	stored.CoverImage = post.CoverImage
	stored.Tags = post.Tags
	stored.Published = post.Published
	stored.UpdatedAt = time.Now()

	if err = txn.Insert(tblPosts, stored); err != nil {
		return fmt.Errorf("update post %d: %w", post.ID, err)
	}

	txn.Commit()
	post.UpdatedAt = stored.UpdatedAt
	return nil
}

// GetPostByID находит статью по ID.
func (d *DB) GetPostByID(_ context.Context, postID int64) (*models.Post, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblPosts, "id", postID)
	if err != nil {
		return nil, fmt.Errorf("find post %d: %w", postID, err)
	}
	if raw == nil {
		return nil, repository.ErrPostNotFound
	}

	return raw.(*models.Post).DeepCopy(), nil
}

// DeletePost удаляет статью. История версий не затрагивается.
func (d *DB) DeletePost(_ context.Context, postID int64) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblPosts, "id", postID)
	if err != nil {
		return fmt.Errorf("find post %d: %w", postID, err)
	}
	if raw == nil {
		return repository.ErrPostNotFound
	}
	if err = txn.Delete(tblPosts, raw); err != nil {
		return fmt.Errorf("delete post %d: %w", postID, err)
	}

	txn.Commit()
	return nil
}

// WithinVersionTx выполняет fn в пишущей транзакции memdb.
func (d *DB) WithinVersionTx(
	_ context.Context,
	_ int64,
	fn func(tx repository.PostVersionTx) error,
) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	if err := fn(&versionTx{txn: txn, db: d}); err != nil {
		return err
	}

	txn.Commit()
	return nil
}

// ListVersionsByPostID возвращает версии статьи от новых к старым.
func (d *DB) ListVersionsByPostID(
	_ context.Context,
	postID int64,
	limit,
	offset int,
) ([]models.PostVersion, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	versions, err := findVersions(txn, postID)
	if err != nil {
		return nil, err
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version > versions[j].Version
	})

	start := min(max(offset, 0), len(versions))
	end := len(versions)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	return versions[start:end], nil
}

// GetVersion находит версию статьи по номеру.
func (d *DB) GetVersion(_ context.Context, postID int64, version int) (*models.PostVersion, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblPostVersions, "post_id_version", postID, version)
	if err != nil {
		return nil, fmt.Errorf("find version %d of post %d: %w", version, postID, err)
	}
	if raw == nil {
		return nil, repository.ErrVersionNotFound
	}

	return raw.(*models.PostVersion).DeepCopy(), nil
}

// GetLatestVersion возвращает последнюю версию статьи.
func (d *DB) GetLatestVersion(_ context.Context, postID int64) (*models.PostVersion, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	latest, err := latestVersion(txn, postID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, repository.ErrVersionNotFound
	}

	return latest.DeepCopy(), nil
}

// CountVersionsByPostID возвращает количество версий статьи.
func (d *DB) CountVersionsByPostID(_ context.Context, postID int64) (int64, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(tblPostVersions, "post_id", postID)
	if err != nil {
		return 0, fmt.Errorf("count versions of post %d: %w", postID, err)
	}

	var count int64
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		count++
	}
	return count, nil
}

// DeleteVersionsByPostID удаляет всю историю статьи одной транзакцией.
func (d *DB) DeleteVersionsByPostID(_ context.Context, postID int64) (int64, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	deleted, err := txn.DeleteAll(tblPostVersions, "post_id", postID)
	if err != nil {
		return 0, fmt.Errorf("delete versions of post %d: %w", postID, err)
	}

	txn.Commit()
	return int64(deleted), nil
}

// versionTx реализует repository.PostVersionTx поверх пишущей транзакции memdb.
type versionTx struct {
	txn *memdb.Txn
	db  *DB
}

func (t *versionTx) LatestVersionNumber(_ context.Context, postID int64) (int, error) {
	latest, err := latestVersion(t.txn, postID)
	if err != nil {
		return 0, err
	}
	if latest == nil {
		return 0, nil
	}
	return latest.Version, nil
}

func (t *versionTx) InsertVersion(_ context.Context, v *models.PostVersion) error {
	existing, err := t.txn.First(tblPostVersions, "post_id_version", v.PostID, v.Version)
	if err != nil {
		return fmt.Errorf("find version %d of post %d: %w", v.Version, v.PostID, err)
	}
	if existing != nil {
		return repository.ErrDuplicateVersion
	}

	v.ID = t.db.lastVersionID.Add(1)
	v.CreatedAt = time.Now()
	if err = t.txn.Insert(tblPostVersions, v.DeepCopy()); err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

func findVersions(txn *memdb.Txn, postID int64) ([]models.PostVersion, error) {
	iter, err := txn.Get(tblPostVersions, "post_id", postID)
	if err != nil {
		return nil, fmt.Errorf("find versions of post %d: %w", postID, err)
	}

	versions := make([]models.PostVersion, 0)
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		versions = append(versions, *raw.(*models.PostVersion).DeepCopy())
	}
	return versions, nil
}

func latestVersion(txn *memdb.Txn, postID int64) (*models.PostVersion, error) {
	iter, err := txn.Get(tblPostVersions, "post_id", postID)
	if err != nil {
		return nil, fmt.Errorf("find versions of post %d: %w", postID, err)
	}

	var latest *models.PostVersion
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		v := raw.(*models.PostVersion)
		if latest == nil || v.Version > latest.Version {
			latest = v
		}
	}
	return latest, nil
}
