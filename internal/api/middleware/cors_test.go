package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCORSAllowsFrontendOnly(t *testing.T) {
	app := fiber.New()
	app.Use(NewCORS("https://app.example.com/"))
	app.Post("/api/posts/:id/approve", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	preflight := func(origin string) *http.Response {
		req := httptest.NewRequest(http.MethodOptions, "/api/posts/p1/approve", nil)
		req.Header.Set(fiber.HeaderOrigin, origin)
		req.Header.Set(fiber.HeaderAccessControlRequestMethod, http.MethodPost)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	resp := preflight("https://app.example.com")
	assert.Equal(t, "https://app.example.com", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "true", resp.Header.Get(fiber.HeaderAccessControlAllowCredentials))

	resp = preflight("https://evil.example.net")
	assert.Empty(t, resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	assert.Empty(t, resp.Header.Get(fiber.HeaderAccessControlAllowCredentials))
}
