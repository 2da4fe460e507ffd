package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/brandpost/internal/metrics"
	"github.com/maheshrc27/brandpost/internal/models"
	"github.com/maheshrc27/brandpost/internal/repository"
)

// PublishOutcome is the result of one publish attempt of a post.
type PublishOutcome struct {
	Post    *models.Post
	Results map[string]models.PlatformResult
	Success bool
}

// PublishService drives one scheduled post through every enabled platform
// and records the outcome.
type PublishService interface {
	Publish(ctx context.Context, postID string) (*PublishOutcome, error)
}

type PublishOptions struct {
	PlatformTimeout time.Duration
	Lease           time.Duration
}

type publishService struct {
	posts    repository.PostRepository
	attempts repository.PublishAttemptRepository
	media    MediaResolver
	adapters map[string]PlatformAdapter
	notifier Notifier
	metrics  *metrics.Metrics
	opts     PublishOptions
	now      func() time.Time
}

func NewPublishService(
	posts repository.PostRepository,
	attempts repository.PublishAttemptRepository,
	media MediaResolver,
	adapters []PlatformAdapter,
	notifier Notifier,
	m *metrics.Metrics,
	opts PublishOptions) PublishService {
	byName := make(map[string]PlatformAdapter, len(adapters))
	for _, adapter := range adapters {
		byName[adapter.Platform()] = adapter
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &publishService{
		posts:    posts,
		attempts: attempts,
		media:    media,
		adapters: byName,
		notifier: notifier,
		metrics:  m,
		opts:     opts,
		now:      time.Now,
	}
}

func (s *publishService) Publish(ctx context.Context, postID string) (*PublishOutcome, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}

	switch {
	case post.Status == models.PostStatusPublished:
		return nil, ErrAlreadyPublished
	case post.Approval.IsRejected():
		return nil, ErrRejectedPost
	case post.Status != models.PostStatusScheduled:
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, post.Status, models.PostStatusPublished)
	}

	now := s.now()
	claimed, err := s.posts.ClaimForPublish(ctx, post.ID, now, now.Add(s.opts.Lease))
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrPublishInProgress
	}

	log := slog.With("post_id", post.ID)
	media := s.media.Resolve(ctx, post)
	log.Info("publishing post", "platforms", post.Platforms.Enabled(), "media", len(media))

	results := s.fanOut(ctx, post, media)

	success := false
	for _, result := range results {
		if result.Success {
			success = true
			break
		}
	}

	status := models.PostStatusFailed
	if success {
		status = models.PostStatusPublished
	}

	if err := s.finalize(ctx, post, status, results); err != nil {
		return nil, err
	}

	s.metrics.ObserveFinalized(string(status))
	log.Info("post finalized", "status", status)

	if success {
		s.notifier.NotifyPublished(ctx, post, results)
	}

	return &PublishOutcome{Post: post, Results: results, Success: success}, nil
}

// fanOut runs the enabled adapters concurrently. Adapter errors become
// failed results; they never abort siblings.
func (s *publishService) fanOut(ctx context.Context, post *models.Post, media ResolvedMedia) map[string]models.PlatformResult {
	results := make(map[string]models.PlatformResult)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, platform := range post.Platforms.Enabled() {
		adapter, ok := s.adapters[platform]
		if !ok {
			results[platform] = models.PlatformResult{Error: fmt.Sprintf("%s: no adapter configured", platform)}
			continue
		}

		wg.Add(1)
		go func(platform string, adapter PlatformAdapter) {
			defer wg.Done()

			callCtx := ctx
			if s.opts.PlatformTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, s.opts.PlatformTimeout)
				defer cancel()
			}

			result, err := adapter.Publish(callCtx, post, media, post.TargetFor(platform))
			if err != nil {
				slog.Error("platform publish failed", "post_id", post.ID, "platform", platform, "error", err)
				result = &models.PlatformResult{Error: err.Error()}
			} else if result == nil {
				result = &models.PlatformResult{Error: fmt.Sprintf("%s: empty result", platform)}
			}

			mu.Lock()
			results[platform] = *result
			mu.Unlock()
		}(platform, adapter)
	}

	wg.Wait()

	for platform, result := range results {
		s.metrics.ObservePlatform(platform, result.Success)
		s.recordAttempt(ctx, post.ID, platform, result)
	}
	return results
}

func (s *publishService) recordAttempt(ctx context.Context, postID, platform string, result models.PlatformResult) {
	if s.attempts == nil {
		return
	}
	_, err := s.attempts.Create(ctx, &models.PublishAttempt{
		PostID:       postID,
		Platform:     platform,
		Success:      result.Success,
		ExternalID:   result.ExternalID,
		ErrorMessage: result.Error,
	})
	if err != nil {
		slog.Warn("recording publish attempt failed", "post_id", postID, "platform", platform, "error", err)
	}
}

// finalize writes the outcome on a context detached from ctx's cancellation.
func (s *publishService) finalize(ctx context.Context, post *models.Post, status models.PostStatus, results map[string]models.PlatformResult) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	expected := models.PostStatusScheduled
	update := &repository.PostUpdate{
		ExpectedStatus: &expected,
		Status:         &status,
		Results:        results,
		ReleaseClaim:   true,
	}
	if status == models.PostStatusPublished {
		at := s.now()
		update.PublishedAt = &at
		post.PublishedAt = &at
	}

	if err := s.posts.Update(writeCtx, post.ID, update); err != nil {
		if errors.Is(err, repository.ErrPostConflict) {
			slog.Error("post changed while publishing", "post_id", post.ID)
		}
		return err
	}

	post.Status = status
	post.Results = results
	post.ClaimedUntil = nil
	return nil
}
