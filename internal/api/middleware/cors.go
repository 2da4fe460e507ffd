package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// NewCORS allows credentialed requests from the frontend origin only.
func NewCORS(frontendURL string) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     strings.TrimSuffix(frontendURL, "/"),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	})
}
