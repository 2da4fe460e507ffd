package service

import (
	"time"

	"github.com/maheshrc27/brandpost/internal/models"
)

const dueLayout = models.ScheduleDateLayout + " " + models.ScheduleTimeLayout

// BusinessClock reports "now" in the business timezone.
type BusinessClock struct {
	loc *time.Location
	now func() time.Time
}

func NewBusinessClock(loc *time.Location) *BusinessClock {
	return &BusinessClock{loc: loc, now: time.Now}
}

// NewFixedClock returns a clock frozen at t, for tests and replays.
func NewFixedClock(loc *time.Location, t time.Time) *BusinessClock {
	return &BusinessClock{loc: loc, now: func() time.Time { return t }}
}

func (c *BusinessClock) Now() time.Time {
	return c.now().In(c.loc)
}

// Stamp formats now as "YYYY-MM-DD HH:MM", the form posts' due times are
// compared in.
func (c *BusinessClock) Stamp() string {
	return c.Now().Format(dueLayout)
}

// IsDue reports whether the post's due time has arrived (due <= now).
func (c *BusinessClock) IsDue(post *models.Post) bool {
	return post.DueAt() <= c.Stamp()
}

// IsOverdue reports whether the post's due time has strictly passed.
func (c *BusinessClock) IsOverdue(post *models.Post) bool {
	return post.DueAt() < c.Stamp()
}

// validSchedule requires zero-padded values, which the string comparison
// of due times depends on.
func validSchedule(date, clock string) bool {
	if len(date) != len(models.ScheduleDateLayout) || len(clock) != len(models.ScheduleTimeLayout) {
		return false
	}
	if _, err := time.Parse(models.ScheduleDateLayout, date); err != nil {
		return false
	}
	if _, err := time.Parse(models.ScheduleTimeLayout, clock); err != nil {
		return false
	}
	return true
}
