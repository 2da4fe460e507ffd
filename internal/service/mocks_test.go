package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/maheshrc27/brandpost/internal/models"
	"github.com/maheshrc27/brandpost/internal/repository"
	"github.com/stretchr/testify/mock"
)

// MockPostRepository is a mock of repository.PostRepository
type MockPostRepository struct {
	mock.Mock
}

func (m *MockPostRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) error {
	args := m.Called(ctx, tx, post)
	return args.Error(0)
}

func (m *MockPostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockPostRepository) Update(ctx context.Context, id string, u *repository.PostUpdate) error {
	args := m.Called(ctx, id, u)
	return args.Error(0)
}

func (m *MockPostRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPostRepository) SoftDelete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPostRepository) SoftDeleteByOwner(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPostRepository) ListDue(ctx context.Context, status models.PostStatus, beforeOrAt string) ([]*models.Post, error) {
	args := m.Called(ctx, status, beforeOrAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Post), args.Error(1)
}

func (m *MockPostRepository) ListByOwner(ctx context.Context, userID int64) ([]*models.Post, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Post), args.Error(1)
}

func (m *MockPostRepository) ListPendingForApprover(ctx context.Context, approverID int64) ([]*models.Post, error) {
	args := m.Called(ctx, approverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Post), args.Error(1)
}

func (m *MockPostRepository) ClaimForPublish(ctx context.Context, id string, now, leaseUntil time.Time) (bool, error) {
	args := m.Called(ctx, id, now, leaseUntil)
	return args.Bool(0), args.Error(1)
}

// MockAttemptRepository is a mock of repository.PublishAttemptRepository
type MockAttemptRepository struct {
	mock.Mock
}

func (m *MockAttemptRepository) Create(ctx context.Context, pa *models.PublishAttempt) (int64, error) {
	args := m.Called(ctx, pa)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAttemptRepository) ListByPostID(ctx context.Context, postID string) ([]*models.PublishAttempt, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PublishAttempt), args.Error(1)
}

// MockConnectionRepository is a mock of repository.ConnectionRepository
type MockConnectionRepository struct {
	mock.Mock
}

func (m *MockConnectionRepository) GetConnection(ctx context.Context, platform string) (*models.PlatformConnection, error) {
	args := m.Called(ctx, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PlatformConnection), args.Error(1)
}

func (m *MockConnectionRepository) SaveConnection(ctx context.Context, conn *models.PlatformConnection) error {
	args := m.Called(ctx, conn)
	return args.Error(0)
}

func (m *MockConnectionRepository) DeleteConnection(ctx context.Context, platform string) error {
	args := m.Called(ctx, platform)
	return args.Error(0)
}

func (m *MockConnectionRepository) List(ctx context.Context) ([]*models.PlatformConnection, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PlatformConnection), args.Error(1)
}

func (m *MockConnectionRepository) ListExpiring(ctx context.Context, before time.Time) ([]*models.PlatformConnection, error) {
	args := m.Called(ctx, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PlatformConnection), args.Error(1)
}

func (m *MockConnectionRepository) SetToken(ctx context.Context, platform, oldAccessToken string, conn *models.PlatformConnection) error {
	args := m.Called(ctx, platform, oldAccessToken, conn)
	return args.Error(0)
}

// MockUserRepository is a mock of repository.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, bool, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.User), args.Bool(1), args.Error(2)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, bool, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.User), args.Bool(1), args.Error(2)
}

func (m *MockUserRepository) Create(ctx context.Context, tx *sql.Tx, user *models.User) (int64, error) {
	args := m.Called(ctx, tx, user)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) Remove(ctx context.Context, tx *sql.Tx, id int64) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

// MockMediaService is a mock of MediaService
type MockMediaService struct {
	mock.Mock
}

func (m *MockMediaService) Resolve(ctx context.Context, post *models.Post) ResolvedMedia {
	args := m.Called(ctx, post)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(ResolvedMedia)
}

func (m *MockMediaService) Persist(ctx context.Context, ownerKey string, items []models.MediaItem) ([]models.MediaItem, error) {
	args := m.Called(ctx, ownerKey, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MediaItem), args.Error(1)
}

func (m *MockMediaService) Purge(ctx context.Context, refs []string) {
	m.Called(ctx, refs)
}

// MockPublishService is a mock of PublishService
type MockPublishService struct {
	mock.Mock
}

func (m *MockPublishService) Publish(ctx context.Context, postID string) (*PublishOutcome, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PublishOutcome), args.Error(1)
}

// MockNotifier is a mock of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyApprovalRequested(ctx context.Context, post *models.Post) {
	m.Called(ctx, post)
}

func (m *MockNotifier) NotifyApprovalDecision(ctx context.Context, post *models.Post, approved bool, reason string) {
	m.Called(ctx, post, approved, reason)
}

func (m *MockNotifier) NotifyPublished(ctx context.Context, post *models.Post, results map[string]models.PlatformResult) {
	m.Called(ctx, post, results)
}

// MockStorage is a mock of ObjectStorage
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Put(ctx context.Context, data []byte, contentType, ownerKey string) (string, error) {
	args := m.Called(ctx, data, contentType, ownerKey)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) Get(ctx context.Context, ref string) ([]byte, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

func (m *MockStorage) DeleteMany(ctx context.Context, refs []string) error {
	args := m.Called(ctx, refs)
	return args.Error(0)
}

// MockAdapter is a mock of PlatformAdapter
type MockAdapter struct {
	mock.Mock
	name string
}

func (m *MockAdapter) Platform() string {
	return m.name
}

func (m *MockAdapter) Publish(ctx context.Context, post *models.Post, media ResolvedMedia, target string) (*models.PlatformResult, error) {
	args := m.Called(ctx, post, media, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PlatformResult), args.Error(1)
}

// staticConnections serves fixed connections to the adapters.
type staticConnections map[string]*models.PlatformConnection

func (s staticConnections) GetConnection(_ context.Context, platform string) (*models.PlatformConnection, error) {
	return s[platform], nil
}
