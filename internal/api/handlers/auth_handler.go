package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/brandpost/configs"
	"github.com/maheshrc27/brandpost/internal/service"
	"github.com/maheshrc27/brandpost/pkg/utils"
)

const (
	sessionDuration = 24 * time.Hour
	stateDuration   = 10 * time.Minute
	stateSubject    = "login"
)

type AuthHandler struct {
	s   service.AuthService
	cfg config.Config
}

func NewAuthHandler(cfg config.Config, service service.AuthService) *AuthHandler {
	return &AuthHandler{s: service, cfg: cfg}
}

// Login redirects to Google with a short-lived signed state.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	state, err := utils.GenerateToken(h.cfg.SecretKey, stateSubject, utils.AudienceLogin, stateDuration)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "something went wrong",
		})
	}
	return c.Redirect(h.s.AuthURL(state))
}

func (h *AuthHandler) LoginCallbackHandler(c *fiber.Ctx) error {
	claims, err := utils.ValidateToken(h.cfg.SecretKey, c.Query("state"), utils.AudienceLogin)
	if err != nil || claims.UserID != stateSubject {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid login state",
		})
	}

	userID, err := h.s.LoginCallback(c.Context(), c.Query("code"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "something went wrong",
		})
	}

	token, err := utils.GenerateToken(h.cfg.SecretKey, fmt.Sprintf("%d", userID), utils.AudienceSession, sessionDuration)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "something went wrong",
		})
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.cfg.CookieName,
		Value:    token,
		HTTPOnly: true,
		Secure:   false,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
		Expires:  time.Now().Add(sessionDuration),
	})

	return c.Redirect(h.cfg.FrontendURL, fiber.StatusTemporaryRedirect)
}
