package job

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maheshrc27/brandpost/internal/metrics"
	"github.com/maheshrc27/brandpost/internal/models"
	"github.com/maheshrc27/brandpost/internal/repository"
	"github.com/maheshrc27/brandpost/internal/service"
)

// Lease guards a tick across scheduler instances.
type Lease interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// TickReport summarizes one scheduler tick.
type TickReport struct {
	Candidates int
	Published  int
	Failed     int
	Skipped    int
	Errors     int
}

type SchedulerJob struct {
	posts       repository.PostRepository
	publisher   service.PublishService
	clock       *service.BusinessClock
	lease       Lease
	metrics     *metrics.Metrics
	concurrency int
	tickTimeout time.Duration
	running     atomic.Bool
}

type SchedulerOptions struct {
	Concurrency int
	TickTimeout time.Duration
	Lease       Lease // nil for single-instance deployments
}

func NewSchedulerJob(
	posts repository.PostRepository,
	publisher service.PublishService,
	clock *service.BusinessClock,
	m *metrics.Metrics,
	opts SchedulerOptions) *SchedulerJob {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &SchedulerJob{
		posts:       posts,
		publisher:   publisher,
		clock:       clock,
		lease:       opts.Lease,
		metrics:     m,
		concurrency: opts.Concurrency,
		tickTimeout: opts.TickTimeout,
	}
}

// Run is the cron entry point.
func (j *SchedulerJob) Run() {
	j.Tick(context.Background())
}

// Tick publishes every due, publishable scheduled post. Overlapping calls
// return immediately.
func (j *SchedulerJob) Tick(ctx context.Context) TickReport {
	var report TickReport
	if !j.running.CompareAndSwap(false, true) {
		slog.Warn("scheduler tick still running, skipping")
		j.metrics.ObserveSkipped("overlap")
		return report
	}
	defer j.running.Store(false)

	start := time.Now()
	defer func() { j.metrics.SchedulerTick.Observe(time.Since(start).Seconds()) }()

	if j.tickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.tickTimeout)
		defer cancel()
	}

	if j.lease != nil {
		acquired, err := j.lease.Acquire(ctx)
		if err != nil {
			slog.Error("scheduler lease", "error", err)
			report.Errors++
			return report
		}
		if !acquired {
			slog.Debug("scheduler lease held elsewhere, skipping tick")
			j.metrics.ObserveSkipped("lease")
			return report
		}
		defer func() {
			if err := j.lease.Release(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("releasing scheduler lease", "error", err)
			}
		}()
	}

	now := j.clock.Stamp()
	posts, err := j.posts.ListDue(ctx, models.PostStatusScheduled, now)
	if err != nil {
		slog.Error("listing due posts", "error", err)
		report.Errors++
		return report
	}
	report.Candidates = len(posts)

	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, j.concurrency)

	for _, post := range posts {
		if reason := j.skipReason(post); reason != "" {
			slog.Info("skipping post", "post_id", post.ID, "reason", reason)
			j.metrics.ObserveSkipped(reason)
			report.Skipped++
			continue
		}

		semaphore <- struct{}{}
		if ctx.Err() != nil {
			<-semaphore
			slog.Warn("scheduler tick deadline reached, deferring remaining posts", "now", now)
			break
		}

		wg.Add(1)
		go func(post *models.Post) {
			defer wg.Done()
			defer func() { <-semaphore }()

			// The tick deadline only stops new posts from starting. A started
			// publish runs under the per-platform timeouts.
			outcome, err := j.publisher.Publish(context.WithoutCancel(ctx), post.ID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, service.ErrPublishInProgress), errors.Is(err, service.ErrAlreadyPublished):
				j.metrics.ObserveSkipped("claimed")
				report.Skipped++
			case err != nil:
				slog.Error("publishing scheduled post", "post_id", post.ID, "error", err)
				report.Errors++
			case outcome.Success:
				report.Published++
			default:
				report.Failed++
			}
		}(post)
	}

	wg.Wait()

	if report.Candidates > 0 {
		slog.Info("scheduler tick done", "now", now, "candidates", report.Candidates, "published", report.Published,
			"failed", report.Failed, "skipped", report.Skipped, "errors", report.Errors)
	}
	return report
}

// skipReason returns why a due candidate must not be published, or "".
func (j *SchedulerJob) skipReason(post *models.Post) string {
	if post.IsDeleted() {
		return "deleted"
	}
	if post.Approval != nil && !post.Approval.IsApproved() {
		return "not_approved"
	}
	if !j.clock.IsDue(post) {
		return "not_due"
	}
	return ""
}
