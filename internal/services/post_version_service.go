package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/maynagashev/gophblog/internal/logging"
	"github.com/maynagashev/gophblog/internal/metrics"
	"github.com/maynagashev/gophblog/internal/models"
	"github.com/maynagashev/gophblog/internal/repository"
)

const (
	// Первая попытка плюс один повтор после конфликта номеров.
	maxSaveAttempts = 2
	// MaxPageSize - максимальный размер страницы истории.
	MaxPageSize = 100
)

var tracer = otel.Tracer("github.com/maynagashev/gophblog/internal/services")

// PostVersionService управляет историей версий статей.
type PostVersionService interface {
	SaveVersion(ctx context.Context, post *models.Post, changeNote string) (*models.PostVersion, error)
	GetHistory(ctx context.Context, postID int64) ([]models.PostVersion, error)
	GetHistoryPage(ctx context.Context, postID int64, page, size int) (*models.Page[models.PostVersion], error)
	// GetVersion и GetLatestVersion возвращают nil без ошибки, если версии нет.
	GetVersion(ctx context.Context, postID int64, version int) (*models.PostVersion, error)
	GetLatestVersion(ctx context.Context, postID int64) (*models.PostVersion, error)
	GetVersionCount(ctx context.Context, postID int64) (int64, error)
	CompareVersions(ctx context.Context, postID int64, version1, version2 int) (*models.VersionComparison, error)
	DeleteVersionHistory(ctx context.Context, postID int64) (int64, error)
}

var _ PostVersionService = (*postVersionService)(nil)

type postVersionService struct {
	versionRepo repository.PostVersionRepository
	sequencer   VersionSequencer
	log         logging.Logger
}

// NewPostVersionService создает новый экземпляр сервиса версий.
func NewPostVersionService(
	versionRepo repository.PostVersionRepository,
	sequencer VersionSequencer,
) PostVersionService {
	return &postVersionService{
		versionRepo: versionRepo,
		sequencer:   sequencer,
		log:         logging.New("services"),
	}
}

// SaveVersion сохраняет снимок текущего состояния статьи под следующим номером.
// При конфликте номеров номер пересчитывается и вставка повторяется один раз.
func (s *postVersionService) SaveVersion(
	ctx context.Context,
	post *models.Post,
	changeNote string,
) (saved *models.PostVersion, err error) {
	const op = "SaveVersion"
	if post == nil || post.ID <= 0 {
		return nil, invalidArgument(op, 0, 0, "статья не сохранена")
	}

	ctx, span := startSpan(ctx, op, post.ID)
	defer func() { endSpan(span, err) }()

	var note *string
	if changeNote != "" {
		note = &changeNote
	}

	start := time.Now()
	defer func() { metrics.VersionSaveDuration.Observe(time.Since(start).Seconds()) }()

	var lastErr error
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		version := models.NewPostVersion(post, note)
		txErr := s.versionRepo.WithinVersionTx(ctx, post.ID, func(tx repository.PostVersionTx) error {
			next, seqErr := s.sequencer.NextVersion(ctx, tx, post.ID)
			if seqErr != nil {
				return seqErr
			}
			version.Version = next
			return tx.InsertVersion(ctx, version)
		})
		if txErr == nil {
			metrics.VersionSaves.WithLabelValues(metrics.ResultSaved).Inc()
			s.log.Infof("[PostVersionService] Сохранена версия %d статьи ID %d", version.Version, post.ID)
			return version, nil
		}

		if !errors.Is(txErr, repository.ErrDuplicateVersion) {
			metrics.VersionSaves.WithLabelValues(metrics.ResultError).Inc()
			s.log.Errorf("[PostVersionService] Ошибка сохранения версии статьи ID %d: %v", post.ID, txErr)
			return nil, storeFailure(op, post.ID, version.Version, txErr)
		}

		metrics.VersionSaves.WithLabelValues(metrics.ResultConflict).Inc()
		s.log.Warnf("[PostVersionService] Конфликт номера версии %d статьи ID %d (попытка %d)",
			version.Version, post.ID, attempt)
		lastErr = txErr
	}

	return nil, &VersionError{Op: op, PostID: post.ID, Kind: ErrVersionConflict, Err: lastErr}
}

// GetHistory возвращает всю историю статьи от новых версий к старым.
func (s *postVersionService) GetHistory(ctx context.Context, postID int64) (_ []models.PostVersion, err error) {
	const op = "GetHistory"
	if postID <= 0 {
		return nil, invalidArgument(op, postID, 0, "неверный ID статьи")
	}

	ctx, span := startSpan(ctx, op, postID)
	defer func() { endSpan(span, err) }()

	versions, err := s.versionRepo.ListVersionsByPostID(ctx, postID, 0, 0)
	if err != nil {
		return nil, storeFailure(op, postID, 0, err)
	}
	return versions, nil
}

// GetHistoryPage возвращает страницу истории. Номера страниц начинаются с нуля.
// Страница за пределами истории возвращается пустой.
func (s *postVersionService) GetHistoryPage(
	ctx context.Context,
	postID int64,
	page,
	size int,
) (_ *models.Page[models.PostVersion], err error) {
	const op = "GetHistoryPage"
	switch {
	case postID <= 0:
		return nil, invalidArgument(op, postID, 0, "неверный ID статьи")
	case page < 0:
		return nil, invalidArgument(op, postID, 0, "номер страницы не может быть отрицательным")
	case size < 1 || size > MaxPageSize:
		return nil, invalidArgument(op, postID, 0, "размер страницы должен быть от 1 до "+strconv.Itoa(MaxPageSize))
	}

	ctx, span := startSpan(ctx, op, postID)
	defer func() { endSpan(span, err) }()

	total, err := s.versionRepo.CountVersionsByPostID(ctx, postID)
	if err != nil {
		return nil, storeFailure(op, postID, 0, err)
	}

	var versions []models.PostVersion
	if offset := int64(page) * int64(size); offset < total {
		versions, err = s.versionRepo.ListVersionsByPostID(ctx, postID, size, int(offset))
		if err != nil {
			return nil, storeFailure(op, postID, 0, err)
		}
	}

	return models.NewPage(versions, page, size, total), nil
}

// GetVersion возвращает версию статьи или nil, если такой версии нет.
func (s *postVersionService) GetVersion(
	ctx context.Context,
	postID int64,
	version int,
) (_ *models.PostVersion, err error) {
	const op = "GetVersion"
	if postID <= 0 || version <= 0 {
		return nil, invalidArgument(op, postID, version, "неверный ID статьи или номер версии")
	}

	ctx, span := startSpan(ctx, op, postID)
	defer func() { endSpan(span, err) }()

	return s.findVersion(ctx, op, postID, version)
}

// GetLatestVersion возвращает последнюю версию статьи или nil, если истории нет.
func (s *postVersionService) GetLatestVersion(ctx context.Context, postID int64) (_ *models.PostVersion, err error) {
	const op = "GetLatestVersion"
	if postID <= 0 {
		return nil, invalidArgument(op, postID, 0, "неверный ID статьи")
	}

	ctx, span := startSpan(ctx, op, postID)
	defer func() { endSpan(span, err) }()

	latest, err := s.versionRepo.GetLatestVersion(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrVersionNotFound) {
			return nil, nil
		}
		return nil, storeFailure(op, postID, 0, err)
	}
	return latest, nil
}

// GetVersionCount возвращает количество версий статьи.
func (s *postVersionService) GetVersionCount(ctx context.Context, postID int64) (_ int64, err error) {
	const op = "GetVersionCount"
	if postID <= 0 {
		return 0, invalidArgument(op, postID, 0, "неверный ID статьи")
	}

	ctx, span := startSpan(ctx, op, postID)
	defer func() { endSpan(span, err) }()

	count, err := s.versionRepo.CountVersionsByPostID(ctx, postID)
	if err != nil {
		return 0, storeFailure(op, postID, 0, err)
	}
	return count, nil
}

// CompareVersions сравнивает две версии статьи по полям.
// Если одной из версий нет, возвращает ErrInvalidVersionRef.
func (s *postVersionService) CompareVersions(
	ctx context.Context,
	postID int64,
	version1,
	version2 int,
) (_ *models.VersionComparison, err error) {
	const op = "CompareVersions"
	if postID <= 0 || version1 <= 0 || version2 <= 0 {
		return nil, invalidArgument(op, postID, 0, "неверный ID статьи или номер версии")
	}

	ctx, span := startSpan(ctx, op, postID)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int("version1", version1), attribute.Int("version2", version2))

	var v1, v2 *models.PostVersion
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var findErr error
		v1, findErr = s.findVersion(gctx, op, postID, version1)
		return findErr
	})
	g.Go(func() error {
		var findErr error
		v2, findErr = s.findVersion(gctx, op, postID, version2)
		return findErr
	})
	if err = g.Wait(); err != nil {
		return nil, err
	}

	if v1 == nil || v2 == nil {
		missing := version1
		if v1 != nil {
			missing = version2
		}
		s.log.Debugf("[PostVersionService] Версия %d статьи ID %d не найдена для сравнения", missing, postID)
		return nil, &VersionError{
			Op:      op,
			PostID:  postID,
			Version: missing,
			Kind:    ErrInvalidVersionRef,
			Err:     ErrVersionNotFound,
		}
	}

	comparison := DiffVersions(v1, v2)
	metrics.Comparisons.WithLabelValues(strconv.FormatBool(comparison.HasChanges())).Inc()
	return &comparison, nil
}

// DeleteVersionHistory удаляет всю историю статьи и возвращает число удаленных версий.
// Удаление пустой истории не считается ошибкой.
func (s *postVersionService) DeleteVersionHistory(ctx context.Context, postID int64) (_ int64, err error) {
	const op = "DeleteVersionHistory"
	if postID <= 0 {
		return 0, invalidArgument(op, postID, 0, "неверный ID статьи")
	}

	ctx, span := startSpan(ctx, op, postID)
	defer func() { endSpan(span, err) }()

	deleted, err := s.versionRepo.DeleteVersionsByPostID(ctx, postID)
	if err != nil {
		s.log.Errorf("[PostVersionService] Ошибка удаления истории статьи ID %d: %v", postID, err)
		return 0, storeFailure(op, postID, 0, err)
	}

	metrics.HistoryPurges.Inc()
	metrics.PurgedVersions.Add(float64(deleted))
	s.log.Infof("[PostVersionService] История статьи ID %d удалена (%d версий)", postID, deleted)
	return deleted, nil
}

func (s *postVersionService) findVersion(
	ctx context.Context,
	op string,
	postID int64,
	version int,
) (*models.PostVersion, error) {
	v, err := s.versionRepo.GetVersion(ctx, postID, version)
	if err != nil {
		if errors.Is(err, repository.ErrVersionNotFound) {
			return nil, nil
		}
		return nil, storeFailure(op, postID, version, err)
	}
	return v, nil
}

func startSpan(ctx context.Context, op string, postID int64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "PostVersionService."+op, trace.WithAttributes(attribute.Int64("post.id", postID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
