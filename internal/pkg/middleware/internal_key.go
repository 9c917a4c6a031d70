package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/CodeLensApp/CodeLens/internal/pkg/env"
)

// RequireInternalKey guards operational endpoints with a static key from
// INTERNAL_API_KEY. With no key configured the endpoints stay closed.
func RequireInternalKey() fiber.Handler {
	return func(c *fiber.Ctx) error {
		expected := env.GetEnv("INTERNAL_API_KEY", "")
		if expected == "" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Internal API disabled"})
		}

		provided := strings.TrimSpace(c.Get("X-API-Key"))
		if provided == "" {
			provided = extractBearerToken(c)
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
		}
		return c.Next()
	}
}
