package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/brandpost/internal/models"
)

// Enqueuer is the part of *asynq.Client the notifier needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func EnqueueNotification(ctx context.Context, client Enqueuer, payload NotificationPayload) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeNotifyEmail, taskPayload)

	_, err = client.EnqueueContext(ctx, task, asynq.MaxRetry(5), asynq.Queue("notifications"))
	if err != nil {
		return err
	}

	slog.Debug("notification enqueued", "kind", payload.Kind, "post_id", payload.PostID)
	return nil
}

// Notifier hands notifications to the asynq worker. Enqueue failures are
// logged and dropped.
type Notifier struct {
	client Enqueuer
}

func NewNotifier(client Enqueuer) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) NotifyApprovalRequested(ctx context.Context, post *models.Post) {
	if post.Approval == nil {
		return
	}
	n.enqueue(ctx, NotificationPayload{
		Kind:       NotificationApprovalRequested,
		PostID:     post.ID,
		Caption:    post.Caption,
		Recipients: []int64{post.Approval.ApproverID},
		Note:       post.Approval.Note,
		DueAt:      post.DueAt(),
	})
}

func (n *Notifier) NotifyApprovalDecision(ctx context.Context, post *models.Post, approved bool, reason string) {
	n.enqueue(ctx, NotificationPayload{
		Kind:       NotificationApprovalDecision,
		PostID:     post.ID,
		Caption:    post.Caption,
		Recipients: []int64{post.UserID},
		Approved:   approved,
		Reason:     reason,
		DueAt:      post.DueAt(),
	})
}

func (n *Notifier) NotifyPublished(ctx context.Context, post *models.Post, results map[string]models.PlatformResult) {
	outcomes := make(map[string]string, len(results))
	for platform, result := range results {
		if result.Success {
			outcomes[platform] = "published"
		} else {
			outcomes[platform] = "failed: " + result.Error
		}
	}
	n.enqueue(ctx, NotificationPayload{
		Kind:       NotificationPublished,
		PostID:     post.ID,
		Caption:    post.Caption,
		Recipients: []int64{post.UserID},
		Outcomes:   outcomes,
	})
}

func (n *Notifier) enqueue(ctx context.Context, payload NotificationPayload) {
	if err := EnqueueNotification(context.WithoutCancel(ctx), n.client, payload); err != nil {
		slog.Error("unable to enqueue notification", "kind", payload.Kind, "post_id", payload.PostID, "error", err)
	}
}
