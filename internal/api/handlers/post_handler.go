package handlers

import (
	"encoding/base64"
	"io"
	"log/slog"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/brandpost/internal/models"
	"github.com/maheshrc27/brandpost/internal/service"
	"github.com/maheshrc27/brandpost/internal/transfer"
)

type PostHandler struct {
	s service.PostService
}

func NewPostHandler(service service.PostService) *PostHandler {
	return &PostHandler{s: service}
}

func (h *PostHandler) SubmitDraft(c *fiber.Ctx) error {
	req, err := parsePostRequest(c)
	if err != nil {
		return badRequest(c, err)
	}

	post, err := h.s.SubmitDraft(c.Context(), GetUserID(c), &req.PostRequest)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) SendForApproval(c *fiber.Ctx) error {
	req, err := parsePostRequest(c)
	if err != nil {
		return badRequest(c, err)
	}

	post, err := h.s.SendForApproval(c.Context(), GetUserID(c), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) Schedule(c *fiber.Ctx) error {
	req, err := parsePostRequest(c)
	if err != nil {
		return badRequest(c, err)
	}

	post, err := h.s.Schedule(c.Context(), GetUserID(c), &req.PostRequest)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) PublishNow(c *fiber.Ctx) error {
	req, err := parsePostRequest(c)
	if err != nil {
		return badRequest(c, err)
	}

	outcome, err := h.s.PublishNow(c.Context(), GetUserID(c), &req.PostRequest)
	if err != nil {
		return errorResponse(c, err)
	}

	status := fiber.StatusOK
	if !outcome.Success {
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(transfer.PublishResponse{
		Post:    outcome.Post,
		Results: outcome.Results,
		Success: outcome.Success,
	})
}

func (h *PostHandler) Approve(c *fiber.Ctx) error {
	var req transfer.ApproveRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
	}

	post, err := h.s.Approve(c.Context(), c.Params("id"), GetUserID(c), &req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) Reject(c *fiber.Ctx) error {
	var req transfer.RejectRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
	}

	if err := h.s.Reject(c.Context(), c.Params("id"), GetUserID(c), req.Reason); err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Post rejected",
	})
}

func (h *PostHandler) Retry(c *fiber.Ctx) error {
	var req transfer.ApproveRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
	}

	post, err := h.s.RetryFailed(c.Context(), c.Params("id"), GetUserID(c), &req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) Edit(c *fiber.Ctx) error {
	req, err := parsePostRequest(c)
	if err != nil {
		return badRequest(c, err)
	}

	post, err := h.s.Edit(c.Context(), c.Params("id"), GetUserID(c), &req.PostRequest)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	post, err := h.s.Get(c.Context(), c.Params("id"), GetUserID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	posts, err := h.s.List(c.Context(), GetUserID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) ListPending(c *fiber.Ctx) error {
	posts, err := h.s.ListPending(c.Context(), GetUserID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) ListAttempts(c *fiber.Ctx) error {
	attempts, err := h.s.ListAttempts(c.Context(), c.Params("id"), GetUserID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(attempts)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	if err := h.s.Remove(c.Context(), c.Params("id"), GetUserID(c)); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func badRequest(c *fiber.Ctx, err error) error {
	slog.Info(err.Error())
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Unable to parse request",
	})
}

// parsePostRequest reads a JSON body, or a multipart form whose "files"
// become inline media items.
func parsePostRequest(c *fiber.Ctx) (*transfer.ApprovalRequest, error) {
	var req transfer.ApprovalRequest
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if err := c.BodyParser(&req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}

	req.ID = c.FormValue("id")
	req.Caption = c.FormValue("caption")
	req.LinkedInOrgID = c.FormValue("linkedin_org_id")
	req.ScheduleDate = c.FormValue("schedule_date")
	req.ScheduleTime = c.FormValue("schedule_time")
	req.Note = c.FormValue("note")
	req.Platforms = models.Platforms{
		Facebook: formBool(c.FormValue("facebook")),
		LinkedIn: formBool(c.FormValue("linkedin")),
	}
	if approver := c.FormValue("approver_id"); approver != "" {
		if req.ApproverID, err = strconv.ParseInt(approver, 10, 64); err != nil {
			return nil, err
		}
	}

	for _, file := range form.File["files"] {
		item, err := inlineItem(file)
		if err != nil {
			return nil, err
		}
		req.MediaItems = append(req.MediaItems, item)
	}
	return &req, nil
}

func inlineItem(file *multipart.FileHeader) (models.MediaItem, error) {
	f, err := file.Open()
	if err != nil {
		return models.MediaItem{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return models.MediaItem{}, err
	}

	contentType := file.Header.Get(fiber.HeaderContentType)
	return models.MediaItem{
		Kind:        service.DetectKind("", contentType, data),
		Data:        base64.StdEncoding.EncodeToString(data),
		FileName:    file.Filename,
		Size:        file.Size,
		ContentType: contentType,
	}, nil
}

func formBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}
