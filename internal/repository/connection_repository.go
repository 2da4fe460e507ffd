package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/brandpost/internal/models"
)

// ConnectionRepository is the token store: one shared connection row per
// platform, not per user.
type ConnectionRepository interface {
	GetConnection(ctx context.Context, platform string) (*models.PlatformConnection, error)
	SaveConnection(ctx context.Context, conn *models.PlatformConnection) error
	DeleteConnection(ctx context.Context, platform string) error
	List(ctx context.Context) ([]*models.PlatformConnection, error)
	ListExpiring(ctx context.Context, before time.Time) ([]*models.PlatformConnection, error)
	SetToken(ctx context.Context, platform, oldAccessToken string, conn *models.PlatformConnection) error
}

const connectionColumns = `id, platform, account_name, access_token, refresh_token, token_expires_at, targets,
	connected_by, created_at, updated_at`

type connectionRepository struct {
	db *sql.DB
}

func NewConnectionRepository(db *sql.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

func (r *connectionRepository) GetConnection(ctx context.Context, platform string) (*models.PlatformConnection, error) {
	query := `SELECT ` + connectionColumns + ` FROM platform_connections WHERE platform = $1`

	conn, err := scanConnection(r.db.QueryRowContext(ctx, query, platform))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return conn, nil
}

func (r *connectionRepository) SaveConnection(ctx context.Context, conn *models.PlatformConnection) error {
	query := `
		INSERT INTO platform_connections (
			platform,
			account_name,
			access_token,
			refresh_token,
			token_expires_at,
			targets,
			connected_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (platform) DO UPDATE SET
			account_name = EXCLUDED.account_name,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			targets = EXCLUDED.targets,
			connected_by = EXCLUDED.connected_by,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	targets := conn.Targets
	if targets == nil {
		targets = []models.ConnectionTarget{}
	}
	encodedTargets, err := toJSON(targets)
	if err != nil {
		return err
	}

	err = r.db.QueryRowContext(ctx, query,
		conn.Platform,
		conn.AccountName,
		conn.AccessToken,
		conn.RefreshToken,
		conn.TokenExpiresAt,
		encodedTargets,
		conn.ConnectedBy,
	).Scan(&conn.ID, &conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

func (r *connectionRepository) DeleteConnection(ctx context.Context, platform string) error {
	query := `DELETE FROM platform_connections WHERE platform = $1`
	_, err := r.db.ExecContext(ctx, query, platform)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *connectionRepository) List(ctx context.Context) ([]*models.PlatformConnection, error) {
	query := `SELECT ` + connectionColumns + ` FROM platform_connections ORDER BY platform`
	return r.list(ctx, query)
}

// ListExpiring returns connections with a refresh token whose access token
// expires before the given instant.
func (r *connectionRepository) ListExpiring(ctx context.Context, before time.Time) ([]*models.PlatformConnection, error) {
	query := `SELECT ` + connectionColumns + ` FROM platform_connections
		WHERE refresh_token <> '' AND token_expires_at IS NOT NULL AND token_expires_at < $1`
	return r.list(ctx, query, before)
}

func (r *connectionRepository) SetToken(ctx context.Context, platform, oldAccessToken string, conn *models.PlatformConnection) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	updateTokenQuery := `
		UPDATE platform_connections
		SET
			access_token = COALESCE(NULLIF($3, ''), access_token),
			refresh_token = COALESCE(NULLIF($4, ''), refresh_token),
			token_expires_at = COALESCE($5, token_expires_at),
			updated_at = CURRENT_TIMESTAMP
		WHERE platform = $1 AND access_token = $2
	`
	result, err := tx.ExecContext(ctx, updateTokenQuery, platform, oldAccessToken, conn.AccessToken, conn.RefreshToken, conn.TokenExpiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		slog.Info("no rows affected; connection may have been replaced", "platform", platform)
		return errors.New("no rows affected; connection may have been replaced")
	}

	if err = tx.Commit(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *connectionRepository) list(ctx context.Context, query string, args ...any) ([]*models.PlatformConnection, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var conns []*models.PlatformConnection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		conns = append(conns, conn)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return conns, nil
}

func scanConnection(row rowScanner) (*models.PlatformConnection, error) {
	var conn models.PlatformConnection
	var expiresAt sql.NullTime
	var targets []byte

	err := row.Scan(&conn.ID, &conn.Platform, &conn.AccountName, &conn.AccessToken, &conn.RefreshToken,
		&expiresAt, &targets, &conn.ConnectedBy, &conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		return nil, err
	}

	conn.TokenExpiresAt = nullTime(expiresAt)
	if err := fromJSON(targets, &conn.Targets); err != nil {
		return nil, err
	}

	return &conn, nil
}
