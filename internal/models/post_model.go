package models

import (
	"time"
)

type PostStatus string

const (
	PostStatusDraft           PostStatus = "draft"
	PostStatusPendingApproval PostStatus = "pending_approval"
	PostStatusScheduled       PostStatus = "scheduled"
	PostStatusPublished       PostStatus = "published"
	PostStatusFailed          PostStatus = "failed"
)

const (
	PlatformFacebook = "facebook"
	PlatformLinkedIn = "linkedin"
)

// Layouts of the due date and time-of-day, both read in the business timezone.
const (
	ScheduleDateLayout = "2006-01-02"
	ScheduleTimeLayout = "15:04"
)

type MediaKind string

const (
	MediaKindImage    MediaKind = "image"
	MediaKindVideo    MediaKind = "video"
	MediaKindDocument MediaKind = "document"
)

type Post struct {
	ID            string                    `db:"id" json:"id"`
	UserID        int64                     `db:"user_id" json:"user_id"`
	Caption       string                    `db:"caption" json:"caption"`
	Media         *MediaItem                `db:"media" json:"media,omitempty"` // legacy single media field
	MediaItems    []MediaItem               `db:"media_items" json:"media_items"`
	Platforms     Platforms                 `db:"platforms" json:"platforms"`
	LinkedInOrgID string                    `db:"linkedin_org_id" json:"linkedin_org_id,omitempty"`
	ScheduleDate  string                    `db:"schedule_date" json:"schedule_date"`
	ScheduleTime  string                    `db:"schedule_time" json:"schedule_time"`
	Status        PostStatus                `db:"status" json:"status"`
	Approval      *ApprovalInfo             `db:"approval" json:"approval_status,omitempty"`
	Results       map[string]PlatformResult `db:"results" json:"results,omitempty"`
	PublishedAt   *time.Time                `db:"published_at" json:"published_at,omitempty"`
	ClaimedUntil  *time.Time                `db:"publish_claimed_until" json:"-"`
	DeletedAt     *time.Time                `db:"deleted_at" json:"-"`
	CreatedAt     time.Time                 `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time                 `db:"updated_at" json:"updated_at"`
}

type Platforms struct {
	Facebook bool `json:"facebook"`
	LinkedIn bool `json:"linkedin"`
}

// Enabled lists the enabled platform names in a stable order.
func (p Platforms) Enabled() []string {
	var enabled []string
	if p.Facebook {
		enabled = append(enabled, PlatformFacebook)
	}
	if p.LinkedIn {
		enabled = append(enabled, PlatformLinkedIn)
	}
	return enabled
}

func (p Platforms) Any() bool {
	return p.Facebook || p.LinkedIn
}

// MediaItem carries either a durable reference (URL) or, while storage is
// unavailable, an inline base64 payload in Data.
type MediaItem struct {
	Kind        MediaKind `json:"type,omitempty"`
	URL         string    `json:"url,omitempty"`
	Data        string    `json:"data,omitempty"`
	FileName    string    `json:"file_name,omitempty"`
	Size        int64     `json:"size,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
}

func (m MediaItem) HasReference() bool {
	return m.URL != ""
}

func (m MediaItem) HasInline() bool {
	return m.Data != ""
}

type ApprovalInfo struct {
	RequestedBy     int64      `json:"requested_by"`
	ApproverID      int64      `json:"approver_id"`
	Note            string     `json:"note,omitempty"`
	Approved        *bool      `json:"approved"` // nil until a decision is made
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
}

// IsApproved reports an explicit true decision. Unset and false are both
// treated as not publishable.
func (a *ApprovalInfo) IsApproved() bool {
	return a != nil && a.Approved != nil && *a.Approved
}

func (a *ApprovalInfo) IsRejected() bool {
	return a != nil && a.Approved != nil && !*a.Approved
}

type PlatformResult struct {
	Success    bool           `json:"success"`
	ExternalID string         `json:"external_id,omitempty"`
	Target     string         `json:"target,omitempty"`
	Response   map[string]any `json:"response,omitempty"`
	Skipped    []string       `json:"skipped,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// DueAt is the "date time" string compared lexicographically against the
// business-timezone clock.
func (p *Post) DueAt() string {
	return p.ScheduleDate + " " + p.ScheduleTime
}

// TargetFor returns the platform-specific sub-target the post asks for, or
// "" to let the adapter pick its default.
func (p *Post) TargetFor(platform string) string {
	if platform == PlatformLinkedIn {
		return p.LinkedInOrgID
	}
	return ""
}

func (p *Post) IsDeleted() bool {
	return p.DeletedAt != nil
}

// References returns every durable media reference the post holds.
func (p *Post) References() []string {
	var refs []string
	if p.Media != nil && p.Media.HasReference() {
		refs = append(refs, p.Media.URL)
	}
	for _, item := range p.MediaItems {
		if item.HasReference() {
			refs = append(refs, item.URL)
		}
	}
	return refs
}

var transitions = map[PostStatus][]PostStatus{
	PostStatusDraft:           {PostStatusPendingApproval, PostStatusScheduled, PostStatusPublished},
	PostStatusPendingApproval: {PostStatusScheduled, PostStatusPublished},
	PostStatusScheduled:       {PostStatusPublished, PostStatusFailed},
	PostStatusFailed:          {PostStatusScheduled},
}

// CanTransition reports whether the lifecycle graph allows from -> to.
// Rejection is not a transition: rejected posts are deleted.
func CanTransition(from, to PostStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
