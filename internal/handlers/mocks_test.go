package handlers_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/maynagashev/gophblog/internal/models"
	"github.com/maynagashev/gophblog/internal/services"
)

// MockPostVersionService is a mock implementation of PostVersionService interface.
type MockPostVersionService struct {
	mock.Mock
}

func (m *MockPostVersionService) SaveVersion(
	ctx context.Context,
	post *models.Post,
	changeNote string,
) (*models.PostVersion, error) {
	args := m.Called(ctx, post, changeNote)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PostVersion), args.Error(1) //nolint:errcheck // Acceptable for mocks
}

func (m *MockPostVersionService) GetHistory(ctx context.Context, postID int64) ([]models.PostVersion, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PostVersion), args.Error(1) //nolint:errcheck // Acceptable for mocks
}

func (m *MockPostVersionService) GetHistoryPage(
	ctx context.Context,
	postID int64,
	page, size int,
) (*models.Page[models.PostVersion], error) {
	args := m.Called(ctx, postID, page, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Page[models.PostVersion]), args.Error(1) //nolint:errcheck // Acceptable for mocks
}

func (m *MockPostVersionService) GetVersion(
	ctx context.Context,
	postID int64,
	version int,
) (*models.PostVersion, error) {
	args := m.Called(ctx, postID, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PostVersion), args.Error(1) //nolint:errcheck // Acceptable for mocks
}

func (m *MockPostVersionService) GetLatestVersion(ctx context.Context, postID int64) (*models.PostVersion, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PostVersion), args.Error(1) //nolint:errcheck // Acceptable for mocks
}

func (m *MockPostVersionService) GetVersionCount(ctx context.Context, postID int64) (int64, error) {
	args := m.Called(ctx, postID)
	return args.Get(0).(int64), args.Error(1) //nolint:errcheck // Acceptable for mocks
}

func (m *MockPostVersionService) CompareVersions(
	ctx context.Context,
	postID int64,
	version1, version2 int,
) (*models.VersionComparison, error) {
	args := m.Called(ctx, postID, version1, version2)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VersionComparison), args.Error(1) //nolint:errcheck // Acceptable for mocks
}

func (m *MockPostVersionService) DeleteVersionHistory(ctx context.Context, postID int64) (int64, error) {
	args := m.Called(ctx, postID)
	return args.Get(0).(int64), args.Error(1) //nolint:errcheck // Acceptable for mocks
}

// MockPostService is a mock implementation of PostService interface.
type MockPostService struct {
	mock.Mock
}

func (m *MockPostService) CreatePost(
	ctx context.Context,
	author models.Author,
	req *models.SavePostRequest,
) (*services.PostSaveResult, error) {
	args := m.Called(ctx, author, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.PostSaveResult), args.Error(1) //nolint:errcheck // Acceptable for mocks
}

func (m *MockPostService) UpdatePost(
	ctx context.Context,
	editor models.Author,
	postID int64,
	req *models.SavePostRequest,
) (*services.PostSaveResult, error) {
	args := m.Called(ctx, editor, postID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.PostSaveResult), args.Error(1) //nolint:errcheck // Acceptable for mocks
}

func (m *MockPostService) GetPost(ctx context.Context, postID int64) (*models.Post, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1) //nolint:errcheck // Acceptable for mocks
}

func (m *MockPostService) DeletePost(ctx context.Context, postID int64) (*services.PostDeleteResult, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.PostDeleteResult), args.Error(1) //nolint:errcheck // Acceptable for mocks
}
