package handlers

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/brandpost/internal/service"
)

func GetUserID(c *fiber.Ctx) int64 {
	id, _ := c.Locals("user_id").(string)
	userID, _ := strconv.ParseInt(id, 10, 64)
	return userID
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrPostNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrNotApprover), errors.Is(err, service.ErrNotOwner):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrApproverRequired),
		errors.Is(err, service.ErrInvalidSchedule),
		errors.Is(err, service.ErrNoPlatforms),
		errors.Is(err, service.ErrCaptionRequired),
		errors.Is(err, service.ErrUnknownPlatform):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrNotEditable),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrAlreadyPublished),
		errors.Is(err, service.ErrPublishInProgress),
		errors.Is(err, service.ErrRejectedPost):
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

func errorResponse(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		slog.Error("request failed", "path", c.Path(), "error", err)
		return c.Status(status).JSON(fiber.Map{
			"error": "something went wrong",
		})
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
