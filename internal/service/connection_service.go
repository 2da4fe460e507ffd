package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	config "github.com/maheshrc27/brandpost/configs"
	"github.com/maheshrc27/brandpost/internal/models"
	"github.com/maheshrc27/brandpost/internal/repository"
	"github.com/maheshrc27/brandpost/internal/transfer"
	"github.com/maheshrc27/brandpost/pkg/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/linkedin"
)

var ErrUnknownPlatform = errors.New("unknown platform")

// ConnectionService manages the brand-wide connection of each platform.
// Tokens are encrypted at rest; GetConnection returns them decrypted.
type ConnectionService interface {
	ConnectionProvider
	SaveConnection(ctx context.Context, userID int64, platform string, req *transfer.ConnectionRequest) (*models.PlatformConnection, error)
	DeleteConnection(ctx context.Context, platform string) error
	List(ctx context.Context) ([]*models.PlatformConnection, error)
	ListExpiring(ctx context.Context, within time.Duration) ([]*models.PlatformConnection, error)
	RefreshToken(ctx context.Context, conn *models.PlatformConnection) error
}

type connectionService struct {
	cfg   config.Config
	conns repository.ConnectionRepository
	now   func() time.Time
}

func NewConnectionService(cfg config.Config, conns repository.ConnectionRepository) ConnectionService {
	return &connectionService{cfg: cfg, conns: conns, now: time.Now}
}

func validPlatform(platform string) bool {
	return platform == models.PlatformFacebook || platform == models.PlatformLinkedIn
}

func (s *connectionService) GetConnection(ctx context.Context, platform string) (*models.PlatformConnection, error) {
	conn, err := s.conns.GetConnection(ctx, platform)
	if err != nil || conn == nil {
		return nil, err
	}

	key := utils.TokenKey(s.cfg.SecretKey)
	if conn.AccessToken, err = decryptOptional(conn.AccessToken, key); err != nil {
		return nil, fmt.Errorf("decrypting %s token: %w", platform, err)
	}
	if conn.RefreshToken, err = decryptOptional(conn.RefreshToken, key); err != nil {
		return nil, fmt.Errorf("decrypting %s refresh token: %w", platform, err)
	}
	for i := range conn.Targets {
		if conn.Targets[i].AccessToken, err = decryptOptional(conn.Targets[i].AccessToken, key); err != nil {
			return nil, fmt.Errorf("decrypting %s target token: %w", platform, err)
		}
	}
	return conn, nil
}

func (s *connectionService) SaveConnection(ctx context.Context, userID int64, platform string, req *transfer.ConnectionRequest) (*models.PlatformConnection, error) {
	if !validPlatform(platform) {
		return nil, ErrUnknownPlatform
	}
	if req.AccessToken == "" {
		return nil, errors.New("access token is required")
	}

	key := utils.TokenKey(s.cfg.SecretKey)
	accessToken, err := utils.Encrypt([]byte(req.AccessToken), key)
	if err != nil {
		return nil, err
	}
	refreshToken, err := encryptOptional(req.RefreshToken, key)
	if err != nil {
		return nil, err
	}

	targets := make([]models.ConnectionTarget, 0, len(req.Targets))
	for _, t := range req.Targets {
		token, err := encryptOptional(t.AccessToken, key)
		if err != nil {
			return nil, err
		}
		targets = append(targets, models.ConnectionTarget{ID: t.ID, Name: t.Name, AccessToken: token})
	}

	conn := &models.PlatformConnection{
		Platform:       platform,
		AccountName:    req.AccountName,
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		TokenExpiresAt: req.TokenExpiresAt,
		Targets:        targets,
		ConnectedBy:    userID,
	}
	if err := s.conns.SaveConnection(ctx, conn); err != nil {
		return nil, err
	}

	slog.Info("platform connected", "platform", platform, "targets", len(targets), "user_id", userID)
	return conn, nil
}

func (s *connectionService) DeleteConnection(ctx context.Context, platform string) error {
	if !validPlatform(platform) {
		return ErrUnknownPlatform
	}
	return s.conns.DeleteConnection(ctx, platform)
}

func (s *connectionService) List(ctx context.Context) ([]*models.PlatformConnection, error) {
	return s.conns.List(ctx)
}

// ListExpiring returns raw (still encrypted) connections whose token expires
// within the window.
func (s *connectionService) ListExpiring(ctx context.Context, within time.Duration) ([]*models.PlatformConnection, error) {
	return s.conns.ListExpiring(ctx, s.now().Add(within))
}

// RefreshToken exchanges the stored refresh token for a new access token.
// Only LinkedIn issues refresh tokens; page tokens of Facebook are long-lived.
func (s *connectionService) RefreshToken(ctx context.Context, conn *models.PlatformConnection) error {
	if conn.Platform != models.PlatformLinkedIn {
		return fmt.Errorf("%s tokens cannot be refreshed", conn.Platform)
	}

	key := utils.TokenKey(s.cfg.SecretKey)
	refreshToken, err := utils.Decrypt(conn.RefreshToken, key)
	if err != nil {
		return err
	}

	endpoint := linkedin.Endpoint
	if s.cfg.LinkedIn.TokenURL != "" {
		endpoint.TokenURL = s.cfg.LinkedIn.TokenURL
	}
	oauthCfg := &oauth2.Config{
		ClientID:     s.cfg.LinkedIn.ClientID,
		ClientSecret: s.cfg.LinkedIn.ClientSecret,
		Endpoint:     endpoint,
	}

	token, err := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("refreshing linkedin token: %w", err)
	}

	accessToken, err := utils.Encrypt([]byte(token.AccessToken), key)
	if err != nil {
		return err
	}
	newRefresh := ""
	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		if newRefresh, err = utils.Encrypt([]byte(token.RefreshToken), key); err != nil {
			return err
		}
	}

	var expiresAt *time.Time
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		expiresAt = &expiry
	}

	return s.conns.SetToken(ctx, conn.Platform, conn.AccessToken, &models.PlatformConnection{
		AccessToken:    accessToken,
		RefreshToken:   newRefresh,
		TokenExpiresAt: expiresAt,
	})
}

func encryptOptional(value string, key []byte) (string, error) {
	if value == "" {
		return "", nil
	}
	return utils.Encrypt([]byte(value), key)
}

func decryptOptional(value string, key []byte) (string, error) {
	if value == "" {
		return "", nil
	}
	return utils.Decrypt(value, key)
}
