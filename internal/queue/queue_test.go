package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/brandpost/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{ID: "1", Queue: "notifications"}, nil
}

func (r *recordingEnqueuer) payload(t *testing.T, i int) NotificationPayload {
	t.Helper()
	require.Greater(t, len(r.tasks), i)
	assert.Equal(t, TaskTypeNotifyEmail, r.tasks[i].Type())
	var p NotificationPayload
	require.NoError(t, json.Unmarshal(r.tasks[i].Payload(), &p))
	return p
}

type fakeUsers struct {
	users map[int64]*models.User
	err   error
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*models.User, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	u, ok := f.users[id]
	return u, ok, nil
}

func (f *fakeUsers) GetByEmail(context.Context, string) (*models.User, bool, error) {
	return nil, false, nil
}

func (f *fakeUsers) Create(context.Context, *sql.Tx, *models.User) (int64, error) { return 0, nil }

func (f *fakeUsers) Remove(context.Context, *sql.Tx, int64) error { return nil }

type sentMail struct {
	to      []string
	subject string
	body    string
}

type fakeMail struct {
	sent []sentMail
	err  error
}

func (f *fakeMail) Send(_ context.Context, to []string, subject, body string) error {
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return f.err
}

func pendingPost() *models.Post {
	return &models.Post{
		ID:           "p1",
		UserID:       1,
		Caption:      "Spring launch",
		ScheduleDate: "2025-03-10",
		ScheduleTime: "10:00",
		Approval:     &models.ApprovalInfo{RequestedBy: 1, ApproverID: 2, Note: "check the logo"},
	}
}

func TestNotifierRoutesRecipients(t *testing.T) {
	enq := &recordingEnqueuer{}
	n := NewNotifier(enq)
	post := pendingPost()

	n.NotifyApprovalRequested(context.Background(), post)
	n.NotifyApprovalDecision(context.Background(), post, false, "off brand")
	n.NotifyPublished(context.Background(), post, map[string]models.PlatformResult{
		models.PlatformFacebook: {Success: true},
		models.PlatformLinkedIn: {Error: "token expired"},
	})

	requested := enq.payload(t, 0)
	assert.Equal(t, NotificationApprovalRequested, requested.Kind)
	assert.Equal(t, []int64{2}, requested.Recipients)
	assert.Equal(t, "check the logo", requested.Note)
	assert.Equal(t, "2025-03-10 10:00", requested.DueAt)

	decision := enq.payload(t, 1)
	assert.Equal(t, []int64{1}, decision.Recipients)
	assert.False(t, decision.Approved)
	assert.Equal(t, "off brand", decision.Reason)

	published := enq.payload(t, 2)
	assert.Equal(t, map[string]string{
		models.PlatformFacebook: "published",
		models.PlatformLinkedIn: "failed: token expired",
	}, published.Outcomes)
}

func TestNotifierSwallowsEnqueueErrors(t *testing.T) {
	enq := &recordingEnqueuer{err: errors.New("redis down")}
	n := NewNotifier(enq)

	assert.NotPanics(t, func() { n.NotifyApprovalRequested(context.Background(), pendingPost()) })

	post := pendingPost()
	post.Approval = nil
	n.NotifyApprovalRequested(context.Background(), post)
	assert.Empty(t, enq.tasks)
}

func TestSendNotificationResolvesRecipients(t *testing.T) {
	mail := &fakeMail{}
	users := &fakeUsers{users: map[int64]*models.User{
		1: {ID: 1, Email: "owner@example.com"},
		2: {ID: 2, Email: "approver@example.com"},
	}}
	q := NewQueue(users, mail, "https://app.example.com/")

	err := q.SendNotification(context.Background(), NotificationPayload{
		Kind:       NotificationApprovalRequested,
		PostID:     "p1",
		Caption:    "Spring launch",
		Recipients: []int64{2, 99},
		DueAt:      "2025-03-10 10:00",
	})

	require.NoError(t, err)
	require.Len(t, mail.sent, 1)
	assert.Equal(t, []string{"approver@example.com"}, mail.sent[0].to)
	assert.Equal(t, "A post is waiting for your approval", mail.sent[0].subject)
	assert.Contains(t, mail.sent[0].body, "https://app.example.com/posts/p1")
}

func TestSendNotificationWithoutRecipients(t *testing.T) {
	mail := &fakeMail{}
	q := NewQueue(&fakeUsers{}, mail, "")

	require.NoError(t, q.SendNotification(context.Background(), NotificationPayload{Recipients: []int64{5}}))
	assert.Empty(t, mail.sent)

	q = NewQueue(&fakeUsers{err: errors.New("db down")}, mail, "")
	assert.Error(t, q.SendNotification(context.Background(), NotificationPayload{Recipients: []int64{5}}))
}

func TestHandleNotificationTaskBadPayload(t *testing.T) {
	q := NewQueue(&fakeUsers{}, &fakeMail{}, "")

	err := q.HandleNotificationTask(context.Background(), asynq.NewTask(TaskTypeNotifyEmail, []byte("{")))

	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleNotificationTaskSendFailureRetries(t *testing.T) {
	mail := &fakeMail{err: errors.New("smtp down")}
	q := NewQueue(&fakeUsers{users: map[int64]*models.User{1: {ID: 1, Email: "owner@example.com"}}}, mail, "")
	payload, _ := json.Marshal(NotificationPayload{Kind: NotificationPublished, Recipients: []int64{1}})

	err := q.HandleNotificationTask(context.Background(), asynq.NewTask(TaskTypeNotifyEmail, payload))

	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestRender(t *testing.T) {
	q := NewQueue(nil, nil, "https://app.example.com")

	subject, body := q.render(NotificationPayload{Kind: NotificationApprovalDecision, PostID: "p1", Approved: true, DueAt: "2025-03-10 10:00"})
	assert.Equal(t, "Your post was approved", subject)
	assert.Contains(t, body, "2025-03-10 10:00")
	assert.Contains(t, body, "/posts/p1")

	subject, body = q.render(NotificationPayload{Kind: NotificationApprovalDecision, PostID: "p1", Reason: "off brand"})
	assert.Equal(t, "Your post was rejected", subject)
	assert.Contains(t, body, "Reason: off brand")
	assert.NotContains(t, body, "/posts/p1")

	subject, body = q.render(NotificationPayload{
		Kind:     NotificationPublished,
		Caption:  strings.Repeat("a", 200),
		Outcomes: map[string]string{"linkedin": "published", "facebook": "failed: boom"},
	})
	assert.Equal(t, "Your post was published", subject)
	assert.Contains(t, body, strings.Repeat("a", 140)+"...")
	assert.Less(t, strings.Index(body, "facebook"), strings.Index(body, "linkedin"))
}

func TestExcerptKeepsRunesWhole(t *testing.T) {
	caption := strings.Repeat("a", 139) + "ñandú 🚀 lanzamiento"

	excerpt := excerptOf(caption, 140)

	assert.True(t, utf8.ValidString(excerpt))
	assert.Equal(t, strings.Repeat("a", 139)+"ñ...", excerpt)
	assert.Equal(t, "corto", excerptOf("corto", 140))

	q := NewQueue(nil, nil, "")
	_, body := q.render(NotificationPayload{Kind: NotificationPublished, Caption: strings.Repeat("é", 200)})
	assert.True(t, utf8.ValidString(body))
	assert.Contains(t, body, strings.Repeat("é", 140)+"...")
}
