package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/brandpost/configs"
	"github.com/maheshrc27/brandpost/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-test-secret"

func newApp() *fiber.App {
	m := NewAuthMiddleware(config.Config{SecretKey: testSecret, CookieName: "session"})
	app := fiber.New()
	app.Get("/api/me", m.AuthMiddleware(), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("user_id").(string))
	})
	return app
}

func token(t *testing.T, userID string, ttl time.Duration) string {
	return tokenFor(t, userID, utils.AudienceSession, ttl)
}

func tokenFor(t *testing.T, userID, audience string, ttl time.Duration) string {
	t.Helper()
	tok, err := utils.GenerateToken(testSecret, userID, audience, ttl)
	require.NoError(t, err)
	return tok
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name         string
		cookie       string
		bearer       string
		status       int
		clearsCookie bool
	}{
		{name: "cookie", cookie: token(t, "12", time.Hour), status: fiber.StatusOK},
		{name: "bearer", bearer: token(t, "12", time.Hour), status: fiber.StatusOK},
		{name: "missing", status: fiber.StatusUnauthorized},
		{name: "garbage cookie", cookie: "nope", status: fiber.StatusUnauthorized, clearsCookie: true},
		{name: "expired bearer", bearer: token(t, "12", -time.Minute), status: fiber.StatusUnauthorized},
		{name: "login state token", cookie: tokenFor(t, "12", utils.AudienceLogin, time.Minute), status: fiber.StatusUnauthorized, clearsCookie: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "session", Value: tt.cookie})
			}
			if tt.bearer != "" {
				req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tt.bearer)
			}

			resp, err := newApp().Test(req)
			require.NoError(t, err)

			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.clearsCookie {
				assert.Contains(t, resp.Header.Get(fiber.HeaderSetCookie), "session=")
			} else {
				assert.Empty(t, resp.Header.Get(fiber.HeaderSetCookie))
			}
		})
	}
}
