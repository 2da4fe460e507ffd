package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/maheshrc27/brandpost/internal/models"
	"github.com/maheshrc27/brandpost/internal/repository"
	"github.com/maheshrc27/brandpost/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// PostService is the approval gate and the user-facing post lifecycle.
type PostService interface {
	SubmitDraft(ctx context.Context, userID int64, req *transfer.PostRequest) (*models.Post, error)
	SendForApproval(ctx context.Context, userID int64, req *transfer.ApprovalRequest) (*models.Post, error)
	Approve(ctx context.Context, postID string, approverID int64, req *transfer.ApproveRequest) (*models.Post, error)
	Reject(ctx context.Context, postID string, approverID int64, reason string) error
	Schedule(ctx context.Context, userID int64, req *transfer.PostRequest) (*models.Post, error)
	PublishNow(ctx context.Context, userID int64, req *transfer.PostRequest) (*PublishOutcome, error)
	Edit(ctx context.Context, postID string, userID int64, req *transfer.PostRequest) (*models.Post, error)
	RetryFailed(ctx context.Context, postID string, userID int64, req *transfer.ApproveRequest) (*models.Post, error)
	Get(ctx context.Context, postID string, userID int64) (*models.Post, error)
	List(ctx context.Context, userID int64) ([]*models.Post, error)
	ListPending(ctx context.Context, approverID int64) ([]*models.Post, error)
	ListAttempts(ctx context.Context, postID string, userID int64) ([]*models.PublishAttempt, error)
	Remove(ctx context.Context, postID string, userID int64) error
}

type postService struct {
	posts     repository.PostRepository
	attempts  repository.PublishAttemptRepository
	media     MediaService
	publisher PublishService
	notifier  Notifier
	clock     *BusinessClock
}

func NewPostService(
	posts repository.PostRepository,
	attempts repository.PublishAttemptRepository,
	media MediaService,
	publisher PublishService,
	notifier Notifier,
	clock *BusinessClock) PostService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &postService{
		posts:     posts,
		attempts:  attempts,
		media:     media,
		publisher: publisher,
		notifier:  notifier,
		clock:     clock,
	}
}

func (s *postService) SubmitDraft(ctx context.Context, userID int64, req *transfer.PostRequest) (*models.Post, error) {
	if err := validateContent(req); err != nil {
		return nil, err
	}
	if (req.ScheduleDate != "" || req.ScheduleTime != "") && !validSchedule(req.ScheduleDate, req.ScheduleTime) {
		return nil, ErrInvalidSchedule
	}

	return s.save(ctx, userID, req, models.PostStatusDraft, nil)
}

func (s *postService) SendForApproval(ctx context.Context, userID int64, req *transfer.ApprovalRequest) (*models.Post, error) {
	if req.ApproverID == 0 {
		return nil, ErrApproverRequired
	}
	if err := validateForPublishing(&req.PostRequest); err != nil {
		return nil, err
	}

	approval := &models.ApprovalInfo{
		RequestedBy: userID,
		ApproverID:  req.ApproverID,
		Note:        req.Note,
	}
	post, err := s.save(ctx, userID, &req.PostRequest, models.PostStatusPendingApproval, approval)
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyApprovalRequested(ctx, post)
	return post, nil
}

// Approve schedules a pending post. A post whose due time has already
// passed is published within the same call.
func (s *postService) Approve(ctx context.Context, postID string, approverID int64, req *transfer.ApproveRequest) (*models.Post, error) {
	post, err := s.pendingFor(ctx, postID, approverID)
	if err != nil {
		return nil, err
	}

	if req != nil {
		if req.ScheduleDate != nil {
			post.ScheduleDate = *req.ScheduleDate
		}
		if req.ScheduleTime != nil {
			post.ScheduleTime = *req.ScheduleTime
		}
	}
	if !validSchedule(post.ScheduleDate, post.ScheduleTime) {
		return nil, ErrInvalidSchedule
	}

	approved := true
	at := s.clock.Now()
	post.Approval.Approved = &approved
	post.Approval.ApprovedAt = &at

	expected := models.PostStatusPendingApproval
	scheduled := models.PostStatusScheduled
	err = s.posts.Update(ctx, post.ID, &repository.PostUpdate{
		ExpectedStatus: &expected,
		Status:         &scheduled,
		Approval:       post.Approval,
		ScheduleDate:   &post.ScheduleDate,
		ScheduleTime:   &post.ScheduleTime,
	})
	if err != nil {
		return nil, conflictAs(err, ErrInvalidTransition)
	}
	post.Status = scheduled

	s.notifier.NotifyApprovalDecision(ctx, post, true, "")
	slog.Info("post approved", "post_id", post.ID, "approver_id", approverID, "due", post.DueAt())

	if s.clock.IsOverdue(post) {
		slog.Info("approved post is overdue, publishing now", "post_id", post.ID)
		outcome, err := s.publisher.Publish(ctx, post.ID)
		if err != nil {
			return nil, err
		}
		return outcome.Post, nil
	}

	return post, nil
}

// Reject notifies the requester, then deletes the post and its media.
func (s *postService) Reject(ctx context.Context, postID string, approverID int64, reason string) error {
	post, err := s.pendingFor(ctx, postID, approverID)
	if err != nil {
		return err
	}

	rejected := false
	at := s.clock.Now()
	post.Approval.Approved = &rejected
	post.Approval.ApprovedAt = &at
	post.Approval.RejectionReason = reason

	s.notifier.NotifyApprovalDecision(ctx, post, false, reason)

	if err := s.posts.Delete(ctx, post.ID); err != nil {
		return err
	}
	s.media.Purge(ctx, post.References())

	slog.Info("post rejected and deleted", "post_id", post.ID, "approver_id", approverID)
	return nil
}

func (s *postService) Schedule(ctx context.Context, userID int64, req *transfer.PostRequest) (*models.Post, error) {
	if err := validateForPublishing(req); err != nil {
		return nil, err
	}
	return s.save(ctx, userID, req, models.PostStatusScheduled, nil)
}

// PublishNow saves the post as due immediately and publishes it within the
// request.
func (s *postService) PublishNow(ctx context.Context, userID int64, req *transfer.PostRequest) (*PublishOutcome, error) {
	if req.ID != "" {
		existing, err := s.posts.GetByID(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.Status != models.PostStatusDraft {
			return s.publishExisting(ctx, existing, userID)
		}
	}

	if req.ScheduleDate == "" && req.ScheduleTime == "" {
		now := s.clock.Now()
		req.ScheduleDate = now.Format(models.ScheduleDateLayout)
		req.ScheduleTime = now.Format(models.ScheduleTimeLayout)
	}
	if err := validateForPublishing(req); err != nil {
		return nil, err
	}

	post, err := s.save(ctx, userID, req, models.PostStatusScheduled, nil)
	if err != nil {
		return nil, err
	}
	return s.publisher.Publish(ctx, post.ID)
}

// publishExisting makes the caller's scheduled or pending post due now and
// publishes it. Drafts go through save like new posts.
func (s *postService) publishExisting(ctx context.Context, post *models.Post, userID int64) (*PublishOutcome, error) {
	if post.UserID != userID {
		return nil, ErrNotOwner
	}
	switch post.Status {
	case models.PostStatusScheduled, models.PostStatusPendingApproval:
	case models.PostStatusPublished:
		return nil, ErrAlreadyPublished
	default:
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, post.Status, models.PostStatusPublished)
	}

	from := post.Status
	scheduled := models.PostStatusScheduled
	now := s.clock.Now()
	date := now.Format(models.ScheduleDateLayout)
	clock := now.Format(models.ScheduleTimeLayout)
	update := &repository.PostUpdate{
		ExpectedStatus: &from,
		Status:         &scheduled,
		ScheduleDate:   &date,
		ScheduleTime:   &clock,
	}
	if err := s.posts.Update(ctx, post.ID, update); err != nil {
		return nil, conflictAs(err, ErrPublishInProgress)
	}

	slog.Info("publishing existing post now", "post_id", post.ID, "from", from)
	return s.publisher.Publish(ctx, post.ID)
}

func (s *postService) Edit(ctx context.Context, postID string, userID int64, req *transfer.PostRequest) (*models.Post, error) {
	post, err := s.owned(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if post.Status != models.PostStatusDraft && post.Status != models.PostStatusPendingApproval {
		return nil, ErrNotEditable
	}
	if post.Status == models.PostStatusDraft {
		err = validateContent(req)
	} else {
		err = validateForPublishing(req)
	}
	if err != nil {
		return nil, err
	}

	previous := post.References()
	if err := s.apply(ctx, post, req); err != nil {
		return nil, err
	}

	items := post.MediaItems
	expected := post.Status
	update := &repository.PostUpdate{
		ExpectedStatus: &expected,
		Caption:        &post.Caption,
		MediaItems:     &items,
		Platforms:      &post.Platforms,
		LinkedInOrgID:  &post.LinkedInOrgID,
		ScheduleDate:   &post.ScheduleDate,
		ScheduleTime:   &post.ScheduleTime,
	}
	if post.Media == nil {
		update.ClearMedia = true
	} else {
		update.Media = post.Media
	}
	if err := s.posts.Update(ctx, post.ID, update); err != nil {
		return nil, conflictAs(err, ErrNotEditable)
	}

	s.media.Purge(ctx, dropped(previous, post.References()))
	return post, nil
}

// RetryFailed puts a failed post back on the schedule, optionally at a new
// date and time.
func (s *postService) RetryFailed(ctx context.Context, postID string, userID int64, req *transfer.ApproveRequest) (*models.Post, error) {
	post, err := s.owned(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if post.Status != models.PostStatusFailed {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, post.Status, models.PostStatusScheduled)
	}

	if req != nil {
		if req.ScheduleDate != nil {
			post.ScheduleDate = *req.ScheduleDate
		}
		if req.ScheduleTime != nil {
			post.ScheduleTime = *req.ScheduleTime
		}
	}
	if !validSchedule(post.ScheduleDate, post.ScheduleTime) {
		return nil, ErrInvalidSchedule
	}

	expected := models.PostStatusFailed
	scheduled := models.PostStatusScheduled
	err = s.posts.Update(ctx, post.ID, &repository.PostUpdate{
		ExpectedStatus: &expected,
		Status:         &scheduled,
		ScheduleDate:   &post.ScheduleDate,
		ScheduleTime:   &post.ScheduleTime,
	})
	if err != nil {
		return nil, conflictAs(err, ErrInvalidTransition)
	}

	post.Status = scheduled
	slog.Info("failed post rescheduled", "post_id", post.ID, "due", post.DueAt())
	return post, nil
}

// Get returns a post to its owner or its designated approver.
func (s *postService) Get(ctx context.Context, postID string, userID int64) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	if post.UserID != userID && (post.Approval == nil || post.Approval.ApproverID != userID) {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.Post, error) {
	return s.posts.ListByOwner(ctx, userID)
}

func (s *postService) ListPending(ctx context.Context, approverID int64) ([]*models.Post, error) {
	return s.posts.ListPendingForApprover(ctx, approverID)
}

func (s *postService) ListAttempts(ctx context.Context, postID string, userID int64) ([]*models.PublishAttempt, error) {
	if _, err := s.Get(ctx, postID, userID); err != nil {
		return nil, err
	}
	return s.attempts.ListByPostID(ctx, postID)
}

func (s *postService) Remove(ctx context.Context, postID string, userID int64) error {
	post, err := s.owned(ctx, postID, userID)
	if err != nil {
		return err
	}
	if err := s.posts.Delete(ctx, post.ID); err != nil {
		return err
	}
	s.media.Purge(ctx, post.References())
	return nil
}

// save creates a new post in status, or advances the caller's existing post
// named by req.ID to status.
func (s *postService) save(ctx context.Context, userID int64, req *transfer.PostRequest, status models.PostStatus, approval *models.ApprovalInfo) (*models.Post, error) {
	if req.ID != "" {
		existing, err := s.posts.GetByID(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return s.advance(ctx, existing, userID, req, status, approval)
		}
	}

	id := req.ID
	if id == "" {
		var err error
		if id, err = gonanoid.New(); err != nil {
			return nil, err
		}
	}

	post := &models.Post{
		ID:       id,
		UserID:   userID,
		Status:   status,
		Approval: approval,
	}
	if err := s.apply(ctx, post, req); err != nil {
		return nil, err
	}

	if err := s.posts.Create(ctx, nil, post); err != nil {
		if errors.Is(err, repository.ErrDuplicatePost) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, err)
		}
		return nil, err
	}

	slog.Info("post created", "post_id", post.ID, "status", post.Status, "user_id", userID)
	return post, nil
}

func (s *postService) advance(ctx context.Context, post *models.Post, userID int64, req *transfer.PostRequest, status models.PostStatus, approval *models.ApprovalInfo) (*models.Post, error) {
	if post.UserID != userID {
		return nil, ErrNotOwner
	}
	// Only drafts advance here; pending posts move on through Approve.
	if post.Status != models.PostStatusDraft || !models.CanTransition(post.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, post.Status, status)
	}

	previous := post.References()
	from := post.Status
	if err := s.apply(ctx, post, req); err != nil {
		return nil, err
	}
	post.Status = status
	if approval != nil {
		post.Approval = approval
	}

	items := post.MediaItems
	update := &repository.PostUpdate{
		ExpectedStatus: &from,
		Status:         &status,
		Caption:        &post.Caption,
		MediaItems:     &items,
		Platforms:      &post.Platforms,
		LinkedInOrgID:  &post.LinkedInOrgID,
		ScheduleDate:   &post.ScheduleDate,
		ScheduleTime:   &post.ScheduleTime,
		Approval:       approval,
	}
	if post.Media == nil {
		update.ClearMedia = true
	} else {
		update.Media = post.Media
	}
	if err := s.posts.Update(ctx, post.ID, update); err != nil {
		return nil, conflictAs(err, ErrInvalidTransition)
	}

	s.media.Purge(ctx, dropped(previous, post.References()))
	slog.Info("post advanced", "post_id", post.ID, "from", from, "to", status)
	return post, nil
}

// apply copies request fields onto post, moving inline media to storage.
func (s *postService) apply(ctx context.Context, post *models.Post, req *transfer.PostRequest) error {
	owner := strconv.FormatInt(post.UserID, 10)

	items, err := s.media.Persist(ctx, owner, req.MediaItems)
	if err != nil {
		return err
	}
	var legacy *models.MediaItem
	if req.Media != nil {
		persisted, err := s.media.Persist(ctx, owner, []models.MediaItem{*req.Media})
		if err != nil {
			return err
		}
		legacy = &persisted[0]
	}

	post.Caption = strings.TrimSpace(req.Caption)
	post.Media = legacy
	post.MediaItems = items
	post.Platforms = req.Platforms
	post.LinkedInOrgID = req.LinkedInOrgID
	post.ScheduleDate = req.ScheduleDate
	post.ScheduleTime = req.ScheduleTime
	return nil
}

func (s *postService) pendingFor(ctx context.Context, postID string, approverID int64) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	if post.Status != models.PostStatusPendingApproval {
		return nil, fmt.Errorf("%w: post is %s", ErrInvalidTransition, post.Status)
	}
	if post.Approval == nil || post.Approval.ApproverID != approverID {
		return nil, ErrNotApprover
	}
	return post, nil
}

func (s *postService) owned(ctx context.Context, postID string, userID int64) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	if post.UserID != userID {
		return nil, ErrNotOwner
	}
	return post, nil
}

func validateContent(req *transfer.PostRequest) error {
	if strings.TrimSpace(req.Caption) == "" && req.Media == nil && len(req.MediaItems) == 0 {
		return ErrCaptionRequired
	}
	return nil
}

func validateForPublishing(req *transfer.PostRequest) error {
	if err := validateContent(req); err != nil {
		return err
	}
	if !req.Platforms.Any() {
		return ErrNoPlatforms
	}
	if !validSchedule(req.ScheduleDate, req.ScheduleTime) {
		return ErrInvalidSchedule
	}
	return nil
}

func conflictAs(err, target error) error {
	if errors.Is(err, repository.ErrPostConflict) {
		return fmt.Errorf("%w: %v", target, err)
	}
	return err
}

// dropped lists references present in before but not in after.
func dropped(before, after []string) []string {
	keep := make(map[string]bool, len(after))
	for _, ref := range after {
		keep[ref] = true
	}
	var out []string
	for _, ref := range before {
		if !keep[ref] {
			out = append(out, ref)
		}
	}
	return out
}
