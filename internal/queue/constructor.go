package queue

import (
	"github.com/maheshrc27/brandpost/internal/repository"
	"github.com/maheshrc27/brandpost/internal/service"
)

type Queue struct {
	ur          repository.UserRepository
	ms          service.MailService
	frontendURL string
}

func NewQueue(
	ur repository.UserRepository,
	ms service.MailService,
	frontendURL string) *Queue {
	return &Queue{
		ur:          ur,
		ms:          ms,
		frontendURL: frontendURL,
	}
}

const TaskTypeNotifyEmail = "notify:email"

type NotificationKind string

const (
	NotificationApprovalRequested NotificationKind = "approval_requested"
	NotificationApprovalDecision  NotificationKind = "approval_decision"
	NotificationPublished         NotificationKind = "published"
)

type NotificationPayload struct {
	Kind       NotificationKind  `json:"kind"`
	PostID     string            `json:"post_id"`
	Caption    string            `json:"caption"`
	Recipients []int64           `json:"recipients"`
	Approved   bool              `json:"approved,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Note       string            `json:"note,omitempty"`
	DueAt      string            `json:"due_at,omitempty"`
	Outcomes   map[string]string `json:"outcomes,omitempty"`
}
