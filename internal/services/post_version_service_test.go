package services_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maynagashev/gophblog/internal/metrics"
	"github.com/maynagashev/gophblog/internal/models"
	"github.com/maynagashev/gophblog/internal/repository"
	"github.com/maynagashev/gophblog/internal/repository/memory"
	"github.com/maynagashev/gophblog/internal/services"
)

func strPtr(s string) *string { return &s }

func newMemoryVersionService(t *testing.T) (services.PostVersionService, *memory.DB) {
	t.Helper()
	db, err := memory.New()
	require.NoError(t, err)
	return services.NewPostVersionService(db, services.NewVersionSequencer()), db
}

func testPost(id int64) *models.Post {
	return &models.Post{
		ID:             id,
		Title:          "Заголовок",
		Content:        "Текст статьи",
		Summary:        strPtr("Кратко"),
		Tags:           strPtr("go"),
		AuthorID:       3,
		AuthorUsername: "editor",
	}
}

func saveVersions(t *testing.T, svc services.PostVersionService, post *models.Post, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := svc.SaveVersion(context.Background(), post, "")
		require.NoError(t, err)
	}
}

func TestSaveVersion(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryVersionService(t)
	post := testPost(1)

	first, err := svc.SaveVersion(ctx, post, "Первая версия")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)
	assert.Equal(t, post.Title, first.Title)
	require.NotNil(t, first.ChangeNote)
	assert.Equal(t, "Первая версия", *first.ChangeNote)
	require.NotNil(t, first.CreatedBy)
	assert.Equal(t, int64(3), *first.CreatedBy)
	require.NotNil(t, first.CreatedByUsername)
	assert.Equal(t, "editor", *first.CreatedByUsername)
	assert.False(t, first.CreatedAt.IsZero())

	second, err := svc.SaveVersion(ctx, post, "")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)
	assert.Nil(t, second.ChangeNote, "пустой комментарий сохраняется как NULL")

	t.Run("Снимок не зависит от последующих изменений статьи", func(t *testing.T) {
		post.Title = "Изменено после сохранения"
		*post.Summary = "Изменено"

		stored, getErr := svc.GetVersion(ctx, 1, 1)
		require.NoError(t, getErr)
		assert.Equal(t, "Заголовок", stored.Title)
		assert.Equal(t, "Кратко", *stored.Summary)
	})

	t.Run("Статья без автора", func(t *testing.T) {
		anonymous := &models.Post{ID: 2, Title: "Т", Content: "К"}
		v, saveErr := svc.SaveVersion(ctx, anonymous, "")
		require.NoError(t, saveErr)
		assert.Nil(t, v.CreatedBy)
		assert.Nil(t, v.CreatedByUsername)
		assert.Equal(t, 1, v.Version, "нумерация у каждой статьи своя")
	})
}

func TestSaveVersion_InvalidArgument(t *testing.T) {
	svc, _ := newMemoryVersionService(t)

	_, err := svc.SaveVersion(context.Background(), nil, "")
	require.ErrorIs(t, err, services.ErrInvalidArgument)

	_, err = svc.SaveVersion(context.Background(), &models.Post{Title: "Не сохранена"}, "")
	require.ErrorIs(t, err, services.ErrInvalidArgument)
}

func TestSaveVersion_ConcurrentWritersGetDistinctNumbers(t *testing.T) {
	svc, _ := newMemoryVersionService(t)
	const writers = 50

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []int
		errs    []error
	)
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := svc.SaveVersion(context.Background(), testPost(1), "")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers = append(numbers, v.Version)
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	sort.Ints(numbers)
	expected := make([]int, writers)
	for i := range expected {
		expected[i] = i + 1
	}
	assert.Equal(t, expected, numbers)
}

func TestGetHistory(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryVersionService(t)

	empty, err := svc.GetHistory(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	saveVersions(t, svc, testPost(1), 3)
	saveVersions(t, svc, testPost(2), 1)

	history, err := svc.GetHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, v := range history {
		assert.Equal(t, 3-i, v.Version)
		assert.Equal(t, int64(1), v.PostID)
	}

	_, err = svc.GetHistory(ctx, 0)
	require.ErrorIs(t, err, services.ErrInvalidArgument)
}

func TestGetHistoryPage(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryVersionService(t)
	saveVersions(t, svc, testPost(1), 5)

	tests := []struct {
		name             string
		page, size       int
		expectedVersions []int
		expectedPages    int
		first, last      bool
		expectedErr      error
	}{
		{
			name: "Первая страница", page: 0, size: 2,
			expectedVersions: []int{5, 4}, expectedPages: 3, first: true, last: false,
		},
		{
			name: "Последняя неполная страница", page: 2, size: 2,
			expectedVersions: []int{1}, expectedPages: 3, first: false, last: true,
		},
		{
			name: "Страница за пределами истории", page: 5, size: 2,
			expectedVersions: []int{}, expectedPages: 3, first: false, last: true,
		},
		{
			name: "Вся история на одной странице", page: 0, size: services.MaxPageSize,
			expectedVersions: []int{5, 4, 3, 2, 1}, expectedPages: 1, first: true, last: true,
		},
		{name: "Нулевой размер", page: 0, size: 0, expectedErr: services.ErrInvalidArgument},
		{name: "Слишком большой размер", page: 0, size: services.MaxPageSize + 1, expectedErr: services.ErrInvalidArgument},
		{name: "Отрицательная страница", page: -1, size: 10, expectedErr: services.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.GetHistoryPage(ctx, 1, tt.page, tt.size)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)

			got := make([]int, 0, len(page.Content))
			for _, v := range page.Content {
				got = append(got, v.Version)
			}
			assert.Equal(t, tt.expectedVersions, got)
			assert.Equal(t, int64(5), page.TotalElements)
			assert.Equal(t, tt.expectedPages, page.TotalPages)
			assert.Equal(t, tt.first, page.First)
			assert.Equal(t, tt.last, page.Last)
		})
	}

	t.Run("Пустая история", func(t *testing.T) {
		page, err := svc.GetHistoryPage(ctx, 42, 0, 10)
		require.NoError(t, err)
		assert.Empty(t, page.Content)
		assert.NotNil(t, page.Content)
		assert.Zero(t, page.TotalElements)
	})
}

func TestGetVersion(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryVersionService(t)
	saveVersions(t, svc, testPost(1), 2)

	v, err := svc.GetVersion(ctx, 1, 2)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 2, v.Version)

	missing, err := svc.GetVersion(ctx, 1, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = svc.GetVersion(ctx, 1, 0)
	require.ErrorIs(t, err, services.ErrInvalidArgument)
}

func TestGetLatestVersionAndCount(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryVersionService(t)

	latest, err := svc.GetLatestVersion(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, latest)

	count, err := svc.GetVersionCount(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, count)

	saveVersions(t, svc, testPost(1), 4)

	latest, err = svc.GetLatestVersion(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, latest.Version)

	count, err = svc.GetVersionCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestCompareVersions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryVersionService(t)

	post := testPost(1)
	_, err := svc.SaveVersion(ctx, post, "")
	require.NoError(t, err)
	post.Title = "Новый заголовок"
	post.Tags = nil
	_, err = svc.SaveVersion(ctx, post, "")
	require.NoError(t, err)

	t.Run("Версия с самой собой", func(t *testing.T) {
		cmp, cmpErr := svc.CompareVersions(ctx, 1, 2, 2)
		require.NoError(t, cmpErr)
		assert.False(t, cmp.HasChanges())
	})

	t.Run("Признаки изменений симметричны", func(t *testing.T) {
		forward, cmpErr := svc.CompareVersions(ctx, 1, 1, 2)
		require.NoError(t, cmpErr)
		backward, cmpErr := svc.CompareVersions(ctx, 1, 2, 1)
		require.NoError(t, cmpErr)

		assert.True(t, forward.TitleChanged)
		assert.False(t, forward.ContentChanged)
		assert.False(t, forward.SummaryChanged)
		assert.True(t, forward.TagsChanged)
		assert.Equal(t, 1, forward.Version1.Version)
		assert.Equal(t, 2, forward.Version2.Version)

		assert.Equal(t, forward.TitleChanged, backward.TitleChanged)
		assert.Equal(t, forward.ContentChanged, backward.ContentChanged)
		assert.Equal(t, forward.SummaryChanged, backward.SummaryChanged)
		assert.Equal(t, forward.TagsChanged, backward.TagsChanged)
	})

	t.Run("Несуществующая версия", func(t *testing.T) {
		_, cmpErr := svc.CompareVersions(ctx, 1, 1, 99)
		require.ErrorIs(t, cmpErr, services.ErrInvalidVersionRef)

		var verr *services.VersionError
		require.ErrorAs(t, cmpErr, &verr)
		assert.Equal(t, 99, verr.Version)
		assert.Equal(t, int64(1), verr.PostID)
	})

	t.Run("Неверные номера", func(t *testing.T) {
		_, cmpErr := svc.CompareVersions(ctx, 1, 0, 1)
		require.ErrorIs(t, cmpErr, services.ErrInvalidArgument)
	})
}

func TestDeleteVersionHistory(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryVersionService(t)
	saveVersions(t, svc, testPost(1), 3)
	saveVersions(t, svc, testPost(2), 2)

	purgesBefore := testutil.ToFloat64(metrics.HistoryPurges)

	deleted, err := svc.DeleteVersionHistory(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.InDelta(t, purgesBefore+1, testutil.ToFloat64(metrics.HistoryPurges), 0.001)

	history, err := svc.GetHistory(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, history)

	other, err := svc.GetVersionCount(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), other)

	deleted, err = svc.DeleteVersionHistory(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, deleted, "удаление пустой истории не ошибка")

	v, err := svc.SaveVersion(ctx, testPost(1), "")
	require.NoError(t, err)
	assert.Equal(t, 1, v.Version, "нумерация начинается заново после удаления истории")
}

// --- Mocks ---

// MockPostVersionRepository is a mock for PostVersionRepository.
type MockPostVersionRepository struct {
	mock.Mock
}

func (m *MockPostVersionRepository) WithinVersionTx(
	ctx context.Context,
	postID int64,
	fn func(tx repository.PostVersionTx) error,
) error {
	args := m.Called(ctx, postID, fn)
	return args.Error(0)
}

func (m *MockPostVersionRepository) ListVersionsByPostID(
	ctx context.Context,
	postID int64,
	limit, offset int,
) ([]models.PostVersion, error) {
	args := m.Called(ctx, postID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return args.Get(0).([]models.PostVersion), args.Error(1)
}

func (m *MockPostVersionRepository) GetVersion(
	ctx context.Context,
	postID int64,
	version int,
) (*models.PostVersion, error) {
	args := m.Called(ctx, postID, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return args.Get(0).(*models.PostVersion), args.Error(1)
}

func (m *MockPostVersionRepository) GetLatestVersion(ctx context.Context, postID int64) (*models.PostVersion, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return args.Get(0).(*models.PostVersion), args.Error(1)
}

func (m *MockPostVersionRepository) CountVersionsByPostID(ctx context.Context, postID int64) (int64, error) {
	args := m.Called(ctx, postID)
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPostVersionRepository) DeleteVersionsByPostID(ctx context.Context, postID int64) (int64, error) {
	args := m.Called(ctx, postID)
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return args.Get(0).(int64), args.Error(1)
}

// fakeVersionTx отдает фиксированный последний номер и принимает любую вставку.
type fakeVersionTx struct {
	latest int
}

func (f fakeVersionTx) LatestVersionNumber(_ context.Context, _ int64) (int, error) {
	return f.latest, nil
}

func (f fakeVersionTx) InsertVersion(_ context.Context, v *models.PostVersion) error {
	v.ID = int64(v.Version)
	return nil
}

// runTx вызывает переданную в WithinVersionTx функцию с подставной транзакцией.
func runTx(tx repository.PostVersionTx) func(args mock.Arguments) {
	return func(args mock.Arguments) {
		fn := args.Get(2).(func(repository.PostVersionTx) error) //nolint:errcheck // Тип гарантирован сигнатурой
		_ = fn(tx)
	}
}

func TestSaveVersion_RetryOnConflict(t *testing.T) {
	ctx := context.Background()

	t.Run("Повтор после конфликта успешен", func(t *testing.T) {
		repo := new(MockPostVersionRepository)
		repo.On("WithinVersionTx", mock.Anything, int64(1), mock.Anything).
			Run(runTx(fakeVersionTx{latest: 1})).Return(repository.ErrDuplicateVersion).Once()
		repo.On("WithinVersionTx", mock.Anything, int64(1), mock.Anything).
			Run(runTx(fakeVersionTx{latest: 2})).Return(nil).Once()

		conflictsBefore := testutil.ToFloat64(metrics.VersionSaves.WithLabelValues(metrics.ResultConflict))

		svc := services.NewPostVersionService(repo, services.NewVersionSequencer())
		v, err := svc.SaveVersion(ctx, testPost(1), "")
		require.NoError(t, err)
		assert.Equal(t, 3, v.Version)
		assert.InDelta(t, conflictsBefore+1,
			testutil.ToFloat64(metrics.VersionSaves.WithLabelValues(metrics.ResultConflict)), 0.001)
		repo.AssertExpectations(t)
	})

	t.Run("Конфликт повторяется", func(t *testing.T) {
		repo := new(MockPostVersionRepository)
		repo.On("WithinVersionTx", mock.Anything, int64(1), mock.Anything).
			Return(repository.ErrDuplicateVersion).Twice()

		svc := services.NewPostVersionService(repo, services.NewVersionSequencer())
		_, err := svc.SaveVersion(ctx, testPost(1), "")
		require.ErrorIs(t, err, services.ErrVersionConflict)
		require.ErrorIs(t, err, repository.ErrDuplicateVersion)
		repo.AssertExpectations(t)
		repo.AssertNumberOfCalls(t, "WithinVersionTx", 2)
	})

	t.Run("Ошибка хранилища не повторяется", func(t *testing.T) {
		repo := new(MockPostVersionRepository)
		repo.On("WithinVersionTx", mock.Anything, int64(1), mock.Anything).
			Return(errors.New("connection reset")).Once()

		svc := services.NewPostVersionService(repo, services.NewVersionSequencer())
		_, err := svc.SaveVersion(ctx, testPost(1), "")
		require.ErrorIs(t, err, services.ErrStoreFailure)
		assert.NotErrorIs(t, err, services.ErrVersionConflict)
		repo.AssertNumberOfCalls(t, "WithinVersionTx", 1)
	})
}

func TestReadOperations_StoreFailure(t *testing.T) {
	ctx := context.Background()
	dbErr := errors.New("db down")

	repo := new(MockPostVersionRepository)
	repo.On("ListVersionsByPostID", mock.Anything, int64(1), 0, 0).Return(nil, dbErr)
	repo.On("GetVersion", mock.Anything, int64(1), 1).Return(nil, dbErr)
	repo.On("GetLatestVersion", mock.Anything, int64(1)).Return(nil, dbErr)
	repo.On("CountVersionsByPostID", mock.Anything, int64(1)).Return(int64(0), dbErr)
	repo.On("DeleteVersionsByPostID", mock.Anything, int64(1)).Return(int64(0), dbErr)

	svc := services.NewPostVersionService(repo, services.NewVersionSequencer())

	_, err := svc.GetHistory(ctx, 1)
	require.ErrorIs(t, err, services.ErrStoreFailure)
	_, err = svc.GetVersion(ctx, 1, 1)
	require.ErrorIs(t, err, services.ErrStoreFailure)
	_, err = svc.GetLatestVersion(ctx, 1)
	require.ErrorIs(t, err, services.ErrStoreFailure)
	_, err = svc.GetVersionCount(ctx, 1)
	require.ErrorIs(t, err, services.ErrStoreFailure)
	_, err = svc.GetHistoryPage(ctx, 1, 0, 10)
	require.ErrorIs(t, err, services.ErrStoreFailure)
	_, err = svc.DeleteVersionHistory(ctx, 1)
	require.ErrorIs(t, err, services.ErrStoreFailure)
	require.ErrorIs(t, err, dbErr)
}
