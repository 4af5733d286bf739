package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/maynagashev/gophblog/internal/logging"
	"github.com/maynagashev/gophblog/internal/models"
	"github.com/maynagashev/gophblog/internal/repository"
)

// HistoryPolicy определяет, что происходит с историей при удалении статьи.
type HistoryPolicy string

const (
	// HistoryKeep оставляет историю удаленной статьи в хранилище.
	HistoryKeep HistoryPolicy = "keep"
	// HistoryPurge удаляет историю вместе со статьей.
	HistoryPurge HistoryPolicy = "purge"
	// HistoryArchive выгружает историю в объектное хранилище и затем удаляет ее.
	HistoryArchive HistoryPolicy = "archive"
)

// DefaultChangeNote сохраняется с первой версией, если автор не оставил комментарий.
const DefaultChangeNote = "Первая версия"

// ParseHistoryPolicy разбирает строковое значение политики.
func ParseHistoryPolicy(value string) (HistoryPolicy, error) {
	switch p := HistoryPolicy(value); p {
	case HistoryKeep, HistoryPurge, HistoryArchive:
		return p, nil
	default:
		return "", fmt.Errorf("неизвестная политика истории %q (допустимо: keep, purge, archive)", value)
	}
}

// PostSaveResult - результат сохранения статьи.
// Ошибка снимка не отменяет сохранение статьи и возвращается в VersionError.
type PostSaveResult struct {
	Post         *models.Post        `json:"post"`
	Version      *models.PostVersion `json:"version,omitempty"`
	VersionError string              `json:"version_error,omitempty"`
}

// PostDeleteResult - результат удаления статьи с примененной политикой истории.
type PostDeleteResult struct {
	PostID          int64         `json:"post_id"`
	HistoryPolicy   HistoryPolicy `json:"history_policy"`
	VersionsRemoved int64         `json:"versions_removed"`
	ArchiveKey      string        `json:"archive_key,omitempty"`
	HistoryError    string        `json:"history_error,omitempty"`
}

// PostService управляет живыми статьями и вызывает сервис версий после каждого сохранения.
type PostService interface {
	CreatePost(ctx context.Context, author models.Author, req *models.SavePostRequest) (*PostSaveResult, error)
	UpdatePost(ctx context.Context, editor models.Author, postID int64, req *models.SavePostRequest) (*PostSaveResult, error)
	GetPost(ctx context.Context, postID int64) (*models.Post, error)
	DeletePost(ctx context.Context, postID int64) (*PostDeleteResult, error)
}

var _ PostService = (*postService)(nil)

type postService struct {
	postRepo repository.PostRepository
	versions PostVersionService
	policy   HistoryPolicy
	archiver HistoryArchiver
	log      logging.Logger
}

// NewPostService создает сервис статей.
// archiver обязателен только для политики HistoryArchive.
func NewPostService(
	postRepo repository.PostRepository,
	versions PostVersionService,
	policy HistoryPolicy,
	archiver HistoryArchiver,
) (PostService, error) {
	if _, err := ParseHistoryPolicy(string(policy)); err != nil {
		return nil, err
	}
	if policy == HistoryArchive && archiver == nil {
		return nil, errors.New("для политики archive требуется объектное хранилище")
	}

	return &postService{
		postRepo: postRepo,
		versions: versions,
		policy:   policy,
		archiver: archiver,
		log:      logging.New("services"),
	}, nil
}

// CreatePost создает статью и сохраняет ее первую версию.
func (s *postService) CreatePost(
	ctx context.Context,
	author models.Author,
	req *models.SavePostRequest,
) (*PostSaveResult, error) {
	post := &models.Post{
		AuthorID:       author.ID,
		AuthorUsername: author.Username,
	}
	applyRequest(post, req)

	if err := s.postRepo.CreatePost(ctx, post); err != nil {
		s.log.Errorf("[PostService] Ошибка создания статьи автором %d: %v", author.ID, err)
		return nil, fmt.Errorf("ошибка создания статьи: %w", err)
	}

	note := DefaultChangeNote
	if req.ChangeNote != nil && *req.ChangeNote != "" {
		note = *req.ChangeNote
	}
	return s.snapshot(ctx, post, note), nil
}

// UpdatePost изменяет статью и сохраняет ее новую версию.
// Автором версии записывается редактор, автор статьи не меняется.
func (s *postService) UpdatePost(
	ctx context.Context,
	editor models.Author,
	postID int64,
	req *models.SavePostRequest,
) (*PostSaveResult, error) {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	applyRequest(post, req)

	if err = s.postRepo.UpdatePost(ctx, post); err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return nil, ErrPostNotFound
		}
		s.log.Errorf("[PostService] Ошибка обновления статьи ID %d: %v", postID, err)
		return nil, fmt.Errorf("ошибка обновления статьи: %w", err)
	}

	var note string
	if req.ChangeNote != nil {
		note = *req.ChangeNote
	}
	return s.snapshotBy(ctx, post, editor, note), nil
}

// GetPost возвращает статью по ID.
func (s *postService) GetPost(ctx context.Context, postID int64) (*models.Post, error) {
	post, err := s.postRepo.GetPostByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("ошибка получения статьи: %w", err)
	}
	return post, nil
}

// DeletePost удаляет статью и применяет к ее истории настроенную политику.
// Ошибка обработки истории не отменяет удаление и возвращается в HistoryError.
func (s *postService) DeletePost(ctx context.Context, postID int64) (*PostDeleteResult, error) {
	if err := s.postRepo.DeletePost(ctx, postID); err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return nil, ErrPostNotFound
		}
		s.log.Errorf("[PostService] Ошибка удаления статьи ID %d: %v", postID, err)
		return nil, fmt.Errorf("ошибка удаления статьи: %w", err)
	}

	result := &PostDeleteResult{PostID: postID, HistoryPolicy: s.policy}
	if err := s.applyHistoryPolicy(ctx, result); err != nil {
		s.log.Errorf("[PostService] Статья ID %d удалена, но история не обработана (%s): %v",
			postID, s.policy, err)
		result.HistoryError = err.Error()
	}
	return result, nil
}

func (s *postService) applyHistoryPolicy(ctx context.Context, result *PostDeleteResult) error {
	switch s.policy {
	case HistoryKeep:
		s.log.Infof("[PostService] История статьи ID %d сохранена по политике keep", result.PostID)
		return nil
	case HistoryArchive:
		history, err := s.versions.GetHistory(ctx, result.PostID)
		if err != nil {
			return err
		}
		if len(history) > 0 {
			key, archiveErr := s.archiver.ArchiveHistory(ctx, result.PostID, history)
			if archiveErr != nil {
				return archiveErr
			}
			result.ArchiveKey = key
		}
	}

	removed, err := s.versions.DeleteVersionHistory(ctx, result.PostID)
	if err != nil {
		return err
	}
	result.VersionsRemoved = removed
	return nil
}

// snapshotBy сохраняет версию от имени редактора.
func (s *postService) snapshotBy(
	ctx context.Context,
	post *models.Post,
	editor models.Author,
	note string,
) *PostSaveResult {
	edited := *post
	edited.AuthorID = editor.ID
	edited.AuthorUsername = editor.Username
	result := s.snapshot(ctx, &edited, note)
	result.Post = post
	return result
}

// snapshot сохраняет версию после того, как статья уже сохранена.
func (s *postService) snapshot(ctx context.Context, post *models.Post, note string) *PostSaveResult {
	result := &PostSaveResult{Post: post}

	version, err := s.versions.SaveVersion(ctx, post, note)
	if err != nil {
		s.log.Errorf("[PostService] Статья ID %d сохранена, но версия не создана: %v", post.ID, err)
		result.VersionError = err.Error()
		return result
	}
	result.Version = version
	return result
}

func applyRequest(post *models.Post, req *models.SavePostRequest) {
	post.Title = req.Title
	post.Content = req.Content
	post.Summary = req.Summary
	post.CoverImage = req.CoverImage
	post.Tags = req.Tags
	post.Published = req.Published
}
