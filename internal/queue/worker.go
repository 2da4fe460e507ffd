package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hibiken/asynq"
)

func (j *Queue) HandleNotificationTask(ctx context.Context, task *asynq.Task) error {
	var payload NotificationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decoding notification: %v: %w", err, asynq.SkipRetry)
	}

	return j.SendNotification(ctx, payload)
}

// SendNotification resolves the recipients and mails them. Recipients that
// no longer exist are dropped.
func (j *Queue) SendNotification(ctx context.Context, payload NotificationPayload) error {
	var to []string
	for _, id := range payload.Recipients {
		user, isExist, err := j.ur.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !isExist || user.Email == "" {
			slog.Warn("notification recipient not found", "user_id", id, "post_id", payload.PostID)
			continue
		}
		to = append(to, user.Email)
	}
	if len(to) == 0 {
		return nil
	}

	subject, body := j.render(payload)
	return j.ms.Send(ctx, to, subject, body)
}

func (j *Queue) render(payload NotificationPayload) (string, string) {
	link := fmt.Sprintf("%s/posts/%s", strings.TrimSuffix(j.frontendURL, "/"), payload.PostID)
	excerpt := excerptOf(payload.Caption, 140)

	var b strings.Builder
	var subject string

	switch payload.Kind {
	case NotificationApprovalRequested:
		subject = "A post is waiting for your approval"
		fmt.Fprintf(&b, "A post scheduled for %s needs your review.\n\n%s\n", payload.DueAt, excerpt)
		if payload.Note != "" {
			fmt.Fprintf(&b, "\nNote: %s\n", payload.Note)
		}
	case NotificationApprovalDecision:
		if payload.Approved {
			subject = "Your post was approved"
			fmt.Fprintf(&b, "Your post is scheduled for %s.\n\n%s\n", payload.DueAt, excerpt)
		} else {
			subject = "Your post was rejected"
			fmt.Fprintf(&b, "Your post was rejected and removed.\n\n%s\n", excerpt)
			if payload.Reason != "" {
				fmt.Fprintf(&b, "\nReason: %s\n", payload.Reason)
			}
		}
	case NotificationPublished:
		subject = "Your post was published"
		fmt.Fprintf(&b, "%s\n\n", excerpt)
		platforms := make([]string, 0, len(payload.Outcomes))
		for platform := range payload.Outcomes {
			platforms = append(platforms, platform)
		}
		sort.Strings(platforms)
		for _, platform := range platforms {
			fmt.Fprintf(&b, "%s: %s\n", platform, payload.Outcomes[platform])
		}
	default:
		subject = "Post update"
		fmt.Fprintf(&b, "%s\n", excerpt)
	}

	if payload.Kind != NotificationApprovalDecision || payload.Approved {
		fmt.Fprintf(&b, "\n%s\n", link)
	}
	return subject, b.String()
}

// excerptOf cuts s to at most n runes.
func excerptOf(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
