package transfer

import "github.com/maheshrc27/brandpost/internal/models"

// PostRequest is the body shared by draft, approval, schedule and publish
// requests. ID is optional: when it names an existing post of the caller,
// that post is advanced instead of a new one being created.
type PostRequest struct {
	ID            string             `json:"id,omitempty"`
	Caption       string             `json:"caption"`
	Media         *models.MediaItem  `json:"media,omitempty"`
	MediaItems    []models.MediaItem `json:"media_items,omitempty"`
	Platforms     models.Platforms   `json:"platforms"`
	LinkedInOrgID string             `json:"linkedin_org_id,omitempty"`
	ScheduleDate  string             `json:"schedule_date,omitempty"`
	ScheduleTime  string             `json:"schedule_time,omitempty"`
}

type ApprovalRequest struct {
	PostRequest
	ApproverID int64  `json:"approver_id"`
	Note       string `json:"note,omitempty"`
}

// ApproveRequest optionally overrides the due date and time.
type ApproveRequest struct {
	ScheduleDate *string `json:"schedule_date,omitempty"`
	ScheduleTime *string `json:"schedule_time,omitempty"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type PublishResponse struct {
	Post    *models.Post                     `json:"post"`
	Results map[string]models.PlatformResult `json:"results"`
	Success bool                             `json:"success"`
}
