package service

import (
	"context"

	"github.com/maheshrc27/brandpost/internal/models"
)

// Notifier delivers fire-and-forget notifications. Implementations log
// their own failures; callers never see them.
type Notifier interface {
	NotifyApprovalRequested(ctx context.Context, post *models.Post)
	NotifyApprovalDecision(ctx context.Context, post *models.Post, approved bool, reason string)
	NotifyPublished(ctx context.Context, post *models.Post, results map[string]models.PlatformResult)
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) NotifyApprovalRequested(context.Context, *models.Post) {}

func (NopNotifier) NotifyApprovalDecision(context.Context, *models.Post, bool, string) {}

func (NopNotifier) NotifyPublished(context.Context, *models.Post, map[string]models.PlatformResult) {}
