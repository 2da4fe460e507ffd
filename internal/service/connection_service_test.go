package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	config "github.com/maheshrc27/brandpost/configs"
	"github.com/maheshrc27/brandpost/internal/models"
	"github.com/maheshrc27/brandpost/internal/transfer"
	"github.com/maheshrc27/brandpost/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func decrypt(t *testing.T, value string) string {
	plain, err := utils.Decrypt(value, utils.TokenKey(testSecret))
	require.NoError(t, err)
	return plain
}

func encrypt(t *testing.T, value string) string {
	sealed, err := utils.Encrypt([]byte(value), utils.TokenKey(testSecret))
	require.NoError(t, err)
	return sealed
}

func TestSaveConnectionEncryptsTokens(t *testing.T) {
	repo := new(MockConnectionRepository)
	var saved *models.PlatformConnection
	repo.On("SaveConnection", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		saved = args.Get(1).(*models.PlatformConnection)
	}).Return(nil)

	svc := NewConnectionService(config.Config{SecretKey: testSecret}, repo)
	_, err := svc.SaveConnection(context.Background(), 7, models.PlatformFacebook, &transfer.ConnectionRequest{
		AccountName: "Brand",
		AccessToken: "user-token",
		Targets: []transfer.ConnectionTarget{
			{ID: "page1", Name: "Brand page", AccessToken: "page-token"},
			{ID: "page2", Name: "No token"},
		},
	})

	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, int64(7), saved.ConnectedBy)
	assert.NotEqual(t, "user-token", saved.AccessToken)
	assert.Equal(t, "user-token", decrypt(t, saved.AccessToken))
	assert.Empty(t, saved.RefreshToken)
	assert.Equal(t, "page-token", decrypt(t, saved.Targets[0].AccessToken))
	assert.Empty(t, saved.Targets[1].AccessToken)
}

func TestSaveConnectionUnknownPlatform(t *testing.T) {
	svc := NewConnectionService(config.Config{SecretKey: testSecret}, new(MockConnectionRepository))

	_, err := svc.SaveConnection(context.Background(), 7, "myspace", &transfer.ConnectionRequest{AccessToken: "t"})
	assert.ErrorIs(t, err, ErrUnknownPlatform)

	assert.ErrorIs(t, svc.DeleteConnection(context.Background(), "myspace"), ErrUnknownPlatform)
}

func TestGetConnectionDecrypts(t *testing.T) {
	repo := new(MockConnectionRepository)
	repo.On("GetConnection", mock.Anything, models.PlatformLinkedIn).Return(&models.PlatformConnection{
		Platform:     models.PlatformLinkedIn,
		AccessToken:  encrypt(t, "member-token"),
		RefreshToken: encrypt(t, "refresh"),
		Targets:      []models.ConnectionTarget{{ID: "100", AccessToken: encrypt(t, "org-token")}},
	}, nil)
	repo.On("GetConnection", mock.Anything, models.PlatformFacebook).Return(nil, nil)

	svc := NewConnectionService(config.Config{SecretKey: testSecret}, repo)

	conn, err := svc.GetConnection(context.Background(), models.PlatformLinkedIn)
	require.NoError(t, err)
	assert.Equal(t, "member-token", conn.AccessToken)
	assert.Equal(t, "refresh", conn.RefreshToken)
	assert.Equal(t, "org-token", conn.Targets[0].AccessToken)

	conn, err = svc.GetConnection(context.Background(), models.PlatformFacebook)
	require.NoError(t, err)
	assert.Nil(t, conn)
}

func TestGetConnectionWrongKey(t *testing.T) {
	repo := new(MockConnectionRepository)
	repo.On("GetConnection", mock.Anything, models.PlatformLinkedIn).Return(&models.PlatformConnection{
		AccessToken: encrypt(t, "member-token"),
	}, nil)

	svc := NewConnectionService(config.Config{SecretKey: "rotated"}, repo)

	_, err := svc.GetConnection(context.Background(), models.PlatformLinkedIn)
	assert.Error(t, err)
}

func TestListExpiringUsesWindow(t *testing.T) {
	repo := new(MockConnectionRepository)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	repo.On("ListExpiring", mock.Anything, now.Add(30*time.Minute)).Return([]*models.PlatformConnection{}, nil)

	svc := NewConnectionService(config.Config{SecretKey: testSecret}, repo).(*connectionService)
	svc.now = func() time.Time { return now }

	_, err := svc.ListExpiring(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestRefreshLinkedInToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	repo := new(MockConnectionRepository)
	oldAccess := encrypt(t, "old-access")
	var replacement *models.PlatformConnection
	repo.On("SetToken", mock.Anything, models.PlatformLinkedIn, oldAccess, mock.Anything).Run(func(args mock.Arguments) {
		replacement = args.Get(3).(*models.PlatformConnection)
	}).Return(nil)

	svc := NewConnectionService(config.Config{
		SecretKey: testSecret,
		LinkedIn:  config.LinkedIn{TokenURL: srv.URL, ClientID: "id", ClientSecret: "secret"},
	}, repo)

	err := svc.RefreshToken(context.Background(), &models.PlatformConnection{
		Platform:     models.PlatformLinkedIn,
		AccessToken:  oldAccess,
		RefreshToken: encrypt(t, "old-refresh"),
	})

	require.NoError(t, err)
	require.NotNil(t, replacement)
	assert.Equal(t, "new-access", decrypt(t, replacement.AccessToken))
	assert.Equal(t, "new-refresh", decrypt(t, replacement.RefreshToken))
	require.NotNil(t, replacement.TokenExpiresAt)
	assert.True(t, replacement.TokenExpiresAt.After(time.Now()))
}

func TestRefreshFacebookTokenUnsupported(t *testing.T) {
	svc := NewConnectionService(config.Config{SecretKey: testSecret}, new(MockConnectionRepository))

	err := svc.RefreshToken(context.Background(), &models.PlatformConnection{Platform: models.PlatformFacebook})
	assert.Error(t, err)
}
