package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/brandpost/internal/models"
	"github.com/maheshrc27/brandpost/internal/service"
	"github.com/maheshrc27/brandpost/internal/transfer"
)

type PlatformHandler struct {
	cs service.ConnectionService
}

func NewPlatformHandler(cs service.ConnectionService) *PlatformHandler {
	return &PlatformHandler{cs: cs}
}

// connectionView hides tokens from API responses.
type connectionView struct {
	Platform       string       `json:"platform"`
	AccountName    string       `json:"account_name"`
	Targets        []targetView `json:"targets"`
	TokenExpiresAt *time.Time   `json:"token_expires_at,omitempty"`
	ConnectedBy    int64        `json:"connected_by"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type targetView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func viewOf(conn *models.PlatformConnection) connectionView {
	v := connectionView{
		Platform:       conn.Platform,
		AccountName:    conn.AccountName,
		Targets:        make([]targetView, 0, len(conn.Targets)),
		ConnectedBy:    conn.ConnectedBy,
		UpdatedAt:      conn.UpdatedAt,
		TokenExpiresAt: conn.TokenExpiresAt,
	}
	for _, t := range conn.Targets {
		v.Targets = append(v.Targets, targetView{ID: t.ID, Name: t.Name})
	}
	return v
}

func (h *PlatformHandler) ListConnections(c *fiber.Ctx) error {
	conns, err := h.cs.List(c.Context())
	if err != nil {
		return errorResponse(c, err)
	}

	views := make([]connectionView, 0, len(conns))
	for _, conn := range conns {
		views = append(views, viewOf(conn))
	}
	return c.Status(fiber.StatusOK).JSON(views)
}

func (h *PlatformHandler) SaveConnection(c *fiber.Ctx) error {
	var req transfer.ConnectionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if req.AccessToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "access_token is required",
		})
	}

	conn, err := h.cs.SaveConnection(c.Context(), GetUserID(c), c.Params("platform"), &req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(viewOf(conn))
}

func (h *PlatformHandler) DeleteConnection(c *fiber.Ctx) error {
	if err := h.cs.DeleteConnection(c.Context(), c.Params("platform")); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}
