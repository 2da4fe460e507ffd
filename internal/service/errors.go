package service

import (
	"errors"
	"fmt"
)

var (
	ErrPostNotFound = errors.New("post not found")

	ErrNotApprover = errors.New("only the designated approver can decide on this post")
	ErrNotOwner    = errors.New("post belongs to another user")

	ErrApproverRequired = errors.New("an approver is required")
	ErrInvalidSchedule  = errors.New("schedule date must be YYYY-MM-DD and time HH:MM")
	ErrNoPlatforms      = errors.New("at least one platform must be enabled")
	ErrCaptionRequired  = errors.New("caption or media is required")
	ErrNotEditable      = errors.New("post can only be edited while draft or pending approval")

	ErrInvalidTransition = errors.New("transition not allowed")
	ErrAlreadyPublished  = errors.New("post is already published")
	ErrPublishInProgress = errors.New("post is being published")
	ErrRejectedPost      = errors.New("post was rejected")
)

type PlatformErrorKind string

const (
	KindNotConnected PlatformErrorKind = "not_connected"
	KindNoTarget     PlatformErrorKind = "no_target"
	KindUploadFailed PlatformErrorKind = "upload_failed"
	KindPostFailed   PlatformErrorKind = "post_failed"
)

// Sentinels matching each kind, usable with errors.Is.
var (
	ErrNotConnected = &PlatformError{Kind: KindNotConnected}
	ErrNoTarget     = &PlatformError{Kind: KindNoTarget}
	ErrUploadFailed = &PlatformError{Kind: KindUploadFailed}
	ErrPostFailed   = &PlatformError{Kind: KindPostFailed}
)

// PlatformError is the tagged error every adapter returns.
type PlatformError struct {
	Platform string
	Kind     PlatformErrorKind
	Err      error
}

func (e *PlatformError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Platform, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Platform, e.Kind, e.Err)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// Is matches on kind so callers can test against the sentinels above.
func (e *PlatformError) Is(target error) bool {
	t, ok := target.(*PlatformError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Platform == "" || t.Platform == e.Platform)
}

func platformError(platform string, kind PlatformErrorKind, format string, args ...any) *PlatformError {
	return &PlatformError{Platform: platform, Kind: kind, Err: fmt.Errorf(format, args...)}
}
