package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/brandpost/internal/models"
)

// ErrPostConflict is returned when a guarded update matched no row: the post
// is gone, tombstoned, or no longer in the expected status.
var ErrPostConflict = errors.New("post was modified concurrently")

var ErrDuplicatePost = errors.New("post id already exists")

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	Update(ctx context.Context, id string, u *PostUpdate) error
	Delete(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) error
	SoftDeleteByOwner(ctx context.Context, userID int64) (int64, error)
	ListDue(ctx context.Context, status models.PostStatus, beforeOrAt string) ([]*models.Post, error)
	ListByOwner(ctx context.Context, userID int64) ([]*models.Post, error)
	ListPendingForApprover(ctx context.Context, approverID int64) ([]*models.Post, error)
	ClaimForPublish(ctx context.Context, id string, now, leaseUntil time.Time) (bool, error)
}

// PostUpdate holds the fields to change. Nil pointers are left untouched.
type PostUpdate struct {
	ExpectedStatus *models.PostStatus
	Caption        *string
	Media          *models.MediaItem
	ClearMedia     bool
	MediaItems     *[]models.MediaItem
	Platforms      *models.Platforms
	LinkedInOrgID  *string
	ScheduleDate   *string
	ScheduleTime   *string
	Status         *models.PostStatus
	Approval       *models.ApprovalInfo
	Results        map[string]models.PlatformResult
	PublishedAt    *time.Time
	ReleaseClaim   bool
}

const postColumns = `id, user_id, caption, media, media_items, platforms, linkedin_org_id, schedule_date, schedule_time,
	status, approval, results, published_at, publish_claimed_until, deleted_at, created_at, updated_at`

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) error {
	query := `
		INSERT INTO posts (id, user_id, caption, media, media_items, platforms, linkedin_org_id,
			schedule_date, schedule_time, status, approval)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	media, err := toJSON(post.Media)
	if err != nil {
		return err
	}
	items := post.MediaItems
	if items == nil {
		items = []models.MediaItem{}
	}
	mediaItems, err := toJSON(items)
	if err != nil {
		return err
	}
	platforms, err := toJSON(post.Platforms)
	if err != nil {
		return err
	}
	approval, err := toJSON(post.Approval)
	if err != nil {
		return err
	}

	args := []any{post.ID, post.UserID, post.Caption, media, mediaItems, platforms, post.LinkedInOrgID,
		post.ScheduleDate, post.ScheduleTime, string(post.Status), approval}

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&post.CreatedAt, &post.UpdatedAt)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&post.CreatedAt, &post.UpdatedAt)
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicatePost
		}
		slog.Info(err.Error())
		return err
	}

	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1 AND deleted_at IS NULL`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return post, nil
}

func (r *postRepository) Update(ctx context.Context, id string, u *PostUpdate) error {
	var sets []string
	var args []any

	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	setJSON := func(column string, value any) error {
		encoded, err := toJSON(value)
		if err != nil {
			return err
		}
		set(column, encoded)
		return nil
	}

	if u.Caption != nil {
		set("caption", *u.Caption)
	}
	if u.ClearMedia {
		set("media", nil)
	} else if u.Media != nil {
		if err := setJSON("media", u.Media); err != nil {
			return err
		}
	}
	if u.MediaItems != nil {
		items := *u.MediaItems
		if items == nil {
			items = []models.MediaItem{}
		}
		if err := setJSON("media_items", items); err != nil {
			return err
		}
	}
	if u.Platforms != nil {
		if err := setJSON("platforms", u.Platforms); err != nil {
			return err
		}
	}
	if u.LinkedInOrgID != nil {
		set("linkedin_org_id", *u.LinkedInOrgID)
	}
	if u.ScheduleDate != nil {
		set("schedule_date", *u.ScheduleDate)
	}
	if u.ScheduleTime != nil {
		set("schedule_time", *u.ScheduleTime)
	}
	if u.Status != nil {
		set("status", string(*u.Status))
	}
	if u.Approval != nil {
		if err := setJSON("approval", u.Approval); err != nil {
			return err
		}
	}
	if u.Results != nil {
		if err := setJSON("results", u.Results); err != nil {
			return err
		}
	}
	if u.PublishedAt != nil {
		set("published_at", *u.PublishedAt)
	}
	if u.ReleaseClaim {
		set("publish_claimed_until", nil)
	}
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)
	query := fmt.Sprintf("UPDATE posts SET %s WHERE id = $%d AND deleted_at IS NULL", strings.Join(sets, ", "), len(args))
	if u.ExpectedStatus != nil {
		args = append(args, string(*u.ExpectedStatus))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected == 0 {
		return ErrPostConflict
	}

	return nil
}

func (r *postRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE posts SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) SoftDeleteByOwner(ctx context.Context, userID int64) (int64, error) {
	query := `
		UPDATE posts
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE user_id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return result.RowsAffected()
}

func (r *postRepository) ListDue(ctx context.Context, status models.PostStatus, beforeOrAt string) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE status = $1 AND deleted_at IS NULL AND (schedule_date || ' ' || schedule_time) <= $2
		ORDER BY schedule_date ASC, schedule_time ASC`

	return r.list(ctx, query, string(status), beforeOrAt)
}

func (r *postRepository) ListByOwner(ctx context.Context, userID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC`

	return r.list(ctx, query, userID)
}

func (r *postRepository) ListPendingForApprover(ctx context.Context, approverID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE status = $1 AND deleted_at IS NULL AND (approval->>'approver_id')::bigint = $2
		ORDER BY schedule_date ASC, schedule_time ASC`

	return r.list(ctx, query, string(models.PostStatusPendingApproval), approverID)
}

// ClaimForPublish takes a time-bounded claim on a scheduled post so only one
// publisher works on it. It returns false when the post is not scheduled or
// another claim is still live.
func (r *postRepository) ClaimForPublish(ctx context.Context, id string, now, leaseUntil time.Time) (bool, error) {
	query := `
		UPDATE posts
		SET publish_claimed_until = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND deleted_at IS NULL
			AND (publish_claimed_until IS NULL OR publish_claimed_until < $4)
	`

	result, err := r.db.ExecContext(ctx, query, leaseUntil, id, string(models.PostStatusScheduled), now)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *postRepository) list(ctx context.Context, query string, args ...any) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return posts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var post models.Post
	var status string
	var media, mediaItems, platforms, approval, results []byte
	var publishedAt, claimedUntil, deletedAt sql.NullTime

	err := row.Scan(&post.ID, &post.UserID, &post.Caption, &media, &mediaItems, &platforms, &post.LinkedInOrgID,
		&post.ScheduleDate, &post.ScheduleTime, &status, &approval, &results, &publishedAt, &claimedUntil,
		&deletedAt, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}

	post.Status = models.PostStatus(status)
	if err := fromJSON(media, &post.Media); err != nil {
		return nil, fmt.Errorf("decoding media of post %s: %w", post.ID, err)
	}
	if err := fromJSON(mediaItems, &post.MediaItems); err != nil {
		return nil, fmt.Errorf("decoding media items of post %s: %w", post.ID, err)
	}
	if err := fromJSON(platforms, &post.Platforms); err != nil {
		return nil, fmt.Errorf("decoding platforms of post %s: %w", post.ID, err)
	}
	if err := fromJSON(approval, &post.Approval); err != nil {
		return nil, fmt.Errorf("decoding approval of post %s: %w", post.ID, err)
	}
	if err := fromJSON(results, &post.Results); err != nil {
		return nil, fmt.Errorf("decoding results of post %s: %w", post.ID, err)
	}
	post.PublishedAt = nullTime(publishedAt)
	post.ClaimedUntil = nullTime(claimedUntil)
	post.DeletedAt = nullTime(deletedAt)

	return &post, nil
}

// toJSON encodes v for a jsonb column. Nil pointers become SQL NULL. The
// result is a string because lib/pq sends []byte as bytea.
func toJSON(v any) (any, error) {
	switch typed := v.(type) {
	case *models.MediaItem:
		if typed == nil {
			return nil, nil
		}
	case *models.ApprovalInfo:
		if typed == nil {
			return nil, nil
		}
	}

	encoded, err := json.Marshal(v)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return string(encoded), nil
}

func fromJSON(data []byte, dest any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, dest)
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	value := t.Time
	return &value
}
