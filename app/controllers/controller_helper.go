package controllers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/CodeLensApp/CodeLens/internal/pkg/ai"
	"github.com/CodeLensApp/CodeLens/internal/pkg/billing"
	"github.com/CodeLensApp/CodeLens/internal/pkg/usercontext"
)

var validate = validator.New()

// parseBody decodes and validates a JSON request body. A failure is always
// the client's fault and maps to 400.
func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid JSON body")
	}
	if err := validate.Struct(out); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Missing required fields")
	}
	return nil
}

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

// requireUserEmail returns the authenticated account email or writes a 401.
func requireUserEmail(c *fiber.Ctx) (string, error) {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn || userCtx.Email == "" {
		return "", jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}
	return userCtx.Email, nil
}

// mapAIError translates AI pipeline failures into HTTP responses. Upstream
// garbage is a server-side failure from the client's point of view.
func mapAIError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ai.ErrUpstreamTimeout):
		return jsonError(c, fiber.StatusGatewayTimeout, "gateway_timeout", "AI provider timed out")
	case errors.Is(err, ai.ErrUnrecoverableFormat), errors.Is(err, ai.ErrMissingField), errors.Is(err, ai.ErrInvalidField):
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "AI provider returned an unusable response")
	case errors.Is(err, billing.ErrInsufficientCredits):
		return jsonError(c, fiber.StatusForbidden, "forbidden", "API Key out of credits")
	default:
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "AI request failed")
	}
}
