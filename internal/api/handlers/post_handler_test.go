package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/brandpost/internal/models"
	"github.com/maheshrc27/brandpost/internal/service"
	"github.com/maheshrc27/brandpost/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPostService struct {
	mock.Mock
}

func (m *MockPostService) SubmitDraft(ctx context.Context, userID int64, req *transfer.PostRequest) (*models.Post, error) {
	args := m.Called(ctx, userID, req)
	return postArg(args, 0), args.Error(1)
}

func (m *MockPostService) SendForApproval(ctx context.Context, userID int64, req *transfer.ApprovalRequest) (*models.Post, error) {
	args := m.Called(ctx, userID, req)
	return postArg(args, 0), args.Error(1)
}

func (m *MockPostService) Approve(ctx context.Context, postID string, approverID int64, req *transfer.ApproveRequest) (*models.Post, error) {
	args := m.Called(ctx, postID, approverID, req)
	return postArg(args, 0), args.Error(1)
}

func (m *MockPostService) Reject(ctx context.Context, postID string, approverID int64, reason string) error {
	return m.Called(ctx, postID, approverID, reason).Error(0)
}

func (m *MockPostService) Schedule(ctx context.Context, userID int64, req *transfer.PostRequest) (*models.Post, error) {
	args := m.Called(ctx, userID, req)
	return postArg(args, 0), args.Error(1)
}

func (m *MockPostService) PublishNow(ctx context.Context, userID int64, req *transfer.PostRequest) (*service.PublishOutcome, error) {
	args := m.Called(ctx, userID, req)
	outcome, _ := args.Get(0).(*service.PublishOutcome)
	return outcome, args.Error(1)
}

func (m *MockPostService) Edit(ctx context.Context, postID string, userID int64, req *transfer.PostRequest) (*models.Post, error) {
	args := m.Called(ctx, postID, userID, req)
	return postArg(args, 0), args.Error(1)
}

func (m *MockPostService) RetryFailed(ctx context.Context, postID string, userID int64, req *transfer.ApproveRequest) (*models.Post, error) {
	args := m.Called(ctx, postID, userID, req)
	return postArg(args, 0), args.Error(1)
}

func (m *MockPostService) Get(ctx context.Context, postID string, userID int64) (*models.Post, error) {
	args := m.Called(ctx, postID, userID)
	return postArg(args, 0), args.Error(1)
}

func (m *MockPostService) List(ctx context.Context, userID int64) ([]*models.Post, error) {
	args := m.Called(ctx, userID)
	posts, _ := args.Get(0).([]*models.Post)
	return posts, args.Error(1)
}

func (m *MockPostService) ListPending(ctx context.Context, approverID int64) ([]*models.Post, error) {
	args := m.Called(ctx, approverID)
	posts, _ := args.Get(0).([]*models.Post)
	return posts, args.Error(1)
}

func (m *MockPostService) ListAttempts(ctx context.Context, postID string, userID int64) ([]*models.PublishAttempt, error) {
	args := m.Called(ctx, postID, userID)
	attempts, _ := args.Get(0).([]*models.PublishAttempt)
	return attempts, args.Error(1)
}

func (m *MockPostService) Remove(ctx context.Context, postID string, userID int64) error {
	return m.Called(ctx, postID, userID).Error(0)
}

func postArg(args mock.Arguments, i int) *models.Post {
	post, _ := args.Get(i).(*models.Post)
	return post
}

// withUser stands in for the auth middleware.
func withUser(id string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", id)
		return c.Next()
	}
}

func newPostApp(ps service.PostService, userID string) *fiber.App {
	h := NewPostHandler(ps)
	app := fiber.New()
	api := app.Group("/api", withUser(userID))
	api.Post("/posts/draft", h.SubmitDraft)
	api.Post("/posts/approval", h.SendForApproval)
	api.Post("/posts/schedule", h.Schedule)
	api.Post("/posts/publish", h.PublishNow)
	api.Get("/posts", h.ListPosts)
	api.Get("/posts/pending", h.ListPending)
	api.Get("/posts/:id", h.GetPost)
	api.Put("/posts/:id", h.Edit)
	api.Delete("/posts/:id", h.RemovePost)
	api.Get("/posts/:id/attempts", h.ListAttempts)
	api.Post("/posts/:id/approve", h.Approve)
	api.Post("/posts/:id/reject", h.Reject)
	api.Post("/posts/:id/retry", h.Retry)
	return app
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return req
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, v), string(body))
}

func TestSendForApprovalJSON(t *testing.T) {
	ps := new(MockPostService)
	ps.On("SendForApproval", mock.Anything, int64(7), mock.MatchedBy(func(req *transfer.ApprovalRequest) bool {
		return req.Caption == "Launch" && req.ApproverID == 2 && req.Platforms.LinkedIn && req.ScheduleTime == "10:00"
	})).Return(&models.Post{ID: "p1", Status: models.PostStatusPendingApproval}, nil)

	app := newPostApp(ps, "7")
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/posts/approval",
		`{"caption":"Launch","platforms":{"linkedin":true},"schedule_date":"2025-03-10","schedule_time":"10:00","approver_id":2}`))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var post models.Post
	decodeBody(t, resp, &post)
	assert.Equal(t, models.PostStatusPendingApproval, post.Status)
	ps.AssertExpectations(t)
}

func TestSendForApprovalMultipart(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("caption", "With image"))
	require.NoError(t, w.WriteField("facebook", "true"))
	require.NoError(t, w.WriteField("approver_id", "3"))
	require.NoError(t, w.WriteField("schedule_date", "2025-03-10"))
	require.NoError(t, w.WriteField("schedule_time", "11:30"))
	part, err := w.CreateFormFile("files", "logo.png")
	require.NoError(t, err)
	_, err = part.Write(png)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	ps := new(MockPostService)
	ps.On("SendForApproval", mock.Anything, int64(7), mock.MatchedBy(func(req *transfer.ApprovalRequest) bool {
		if len(req.MediaItems) != 1 {
			return false
		}
		item := req.MediaItems[0]
		return req.Platforms.Facebook && !req.Platforms.LinkedIn && req.ApproverID == 3 &&
			item.Kind == models.MediaKindImage && item.FileName == "logo.png" &&
			item.Data == base64.StdEncoding.EncodeToString(png)
	})).Return(&models.Post{ID: "p2"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/posts/approval", &body)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())

	resp, err := newPostApp(ps, "7").Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	ps.AssertExpectations(t)
}

func TestMalformedBody(t *testing.T) {
	ps := new(MockPostService)
	resp, err := newPostApp(ps, "7").Test(jsonRequest(http.MethodPost, "/api/posts/draft", `{"caption":`))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	ps.AssertNotCalled(t, "SubmitDraft", mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishNowStatus(t *testing.T) {
	tests := []struct {
		name    string
		outcome *service.PublishOutcome
		status  int
	}{
		{
			name: "success",
			outcome: &service.PublishOutcome{
				Post:    &models.Post{ID: "p1", Status: models.PostStatusPublished},
				Results: map[string]models.PlatformResult{"facebook": {Success: true, ExternalID: "1_2"}},
				Success: true,
			},
			status: fiber.StatusOK,
		},
		{
			name: "every platform failed",
			outcome: &service.PublishOutcome{
				Post:    &models.Post{ID: "p1", Status: models.PostStatusFailed},
				Results: map[string]models.PlatformResult{"facebook": {Error: "boom"}},
			},
			status: fiber.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := new(MockPostService)
			ps.On("PublishNow", mock.Anything, int64(7), mock.Anything).Return(tt.outcome, nil)

			resp, err := newPostApp(ps, "7").Test(jsonRequest(http.MethodPost, "/api/posts/publish",
				`{"caption":"Now","platforms":{"facebook":true}}`))
			require.NoError(t, err)

			assert.Equal(t, tt.status, resp.StatusCode)
			var out transfer.PublishResponse
			decodeBody(t, resp, &out)
			assert.Equal(t, tt.outcome.Success, out.Success)
			assert.Equal(t, tt.outcome.Post.Status, out.Post.Status)
		})
	}
}

func TestApproveWithOverride(t *testing.T) {
	ps := new(MockPostService)
	ps.On("Approve", mock.Anything, "p1", int64(2), mock.MatchedBy(func(req *transfer.ApproveRequest) bool {
		return req.ScheduleTime != nil && *req.ScheduleTime == "12:00" && req.ScheduleDate == nil
	})).Return(&models.Post{ID: "p1", Status: models.PostStatusScheduled}, nil)

	resp, err := newPostApp(ps, "2").Test(jsonRequest(http.MethodPost, "/api/posts/p1/approve", `{"schedule_time":"12:00"}`))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	ps.AssertExpectations(t)
}

func TestApproveWithoutBody(t *testing.T) {
	ps := new(MockPostService)
	ps.On("Approve", mock.Anything, "p1", int64(2), &transfer.ApproveRequest{}).Return(&models.Post{ID: "p1"}, nil)

	resp, err := newPostApp(ps, "2").Test(jsonRequest(http.MethodPost, "/api/posts/p1/approve", ""))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	ps.AssertExpectations(t)
}

func TestReject(t *testing.T) {
	ps := new(MockPostService)
	ps.On("Reject", mock.Anything, "p1", int64(2), "off brand").Return(nil)
	ps.On("Reject", mock.Anything, "p9", int64(2), "").Return(service.ErrNotApprover)

	app := newPostApp(ps, "2")

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/posts/p1/reject", `{"reason":"off brand"}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var msg map[string]string
	decodeBody(t, resp, &msg)
	assert.Equal(t, "Post rejected", msg["message"])

	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/posts/p9/reject", ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestErrorStatuses(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{service.ErrPostNotFound, fiber.StatusNotFound},
		{service.ErrNotOwner, fiber.StatusForbidden},
		{service.ErrInvalidSchedule, fiber.StatusBadRequest},
		{service.ErrNotEditable, fiber.StatusConflict},
		{fmt.Errorf("approving: %w", service.ErrPublishInProgress), fiber.StatusConflict},
		{errors.New("db down"), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			ps := new(MockPostService)
			ps.On("Get", mock.Anything, "p1", int64(7)).Return(nil, tt.err)

			resp, err := newPostApp(ps, "7").Test(httptest.NewRequest(http.MethodGet, "/api/posts/p1", nil))
			require.NoError(t, err)

			assert.Equal(t, tt.status, resp.StatusCode)
			var body map[string]string
			decodeBody(t, resp, &body)
			if tt.status == fiber.StatusInternalServerError {
				assert.Equal(t, "something went wrong", body["error"])
			} else {
				assert.Equal(t, tt.err.Error(), body["error"])
			}
		})
	}
}

func TestListsAndRemove(t *testing.T) {
	ps := new(MockPostService)
	ps.On("List", mock.Anything, int64(7)).Return([]*models.Post{{ID: "a"}, {ID: "b"}}, nil)
	ps.On("ListPending", mock.Anything, int64(7)).Return([]*models.Post{{ID: "c"}}, nil)
	ps.On("ListAttempts", mock.Anything, "a", int64(7)).Return([]*models.PublishAttempt{{PostID: "a", Platform: "facebook"}}, nil)
	ps.On("Remove", mock.Anything, "a", int64(7)).Return(nil)

	app := newPostApp(ps, "7")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/posts", nil))
	require.NoError(t, err)
	var posts []models.Post
	decodeBody(t, resp, &posts)
	assert.Len(t, posts, 2)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/posts/pending", nil))
	require.NoError(t, err)
	decodeBody(t, resp, &posts)
	assert.Equal(t, "c", posts[0].ID)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/posts/a/attempts", nil))
	require.NoError(t, err)
	var attempts []models.PublishAttempt
	decodeBody(t, resp, &attempts)
	assert.Equal(t, "facebook", attempts[0].Platform)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/api/posts/a", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	ps.AssertExpectations(t)
}
