package middleware

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/CodeLensApp/CodeLens/app/repository"
	"github.com/CodeLensApp/CodeLens/internal/pkg/identity"
	"github.com/CodeLensApp/CodeLens/internal/pkg/usercontext"
)

// TokenVerifier resolves a bearer token to the identity it was issued for.
// The identity client satisfies this; tests inject a fake.
type TokenVerifier interface {
	GetUser(ctx context.Context, accessToken string) (*identity.AuthUser, error)
}

// RequireAuth authenticates requests carrying a bearer token. The verified
// identity is stored in the request locals for downstream handlers. The users
// repository is optional and only enriches the context with the display name.
func RequireAuth(verifier TokenVerifier, users repository.UserRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearerToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "No token provided"})
		}

		authUser, err := verifier.GetUser(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, identity.ErrUnauthorized) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid token"})
			}
			log.Printf("token verification failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Token verification failed"})
		}

		userCtx := usercontext.UserContext{
			UID:        authUser.ID,
			Email:      authUser.Email,
			IsLoggedIn: true,
		}

		// Best-effort enrichment from our own user record.
		if users != nil {
			if user, err := users.GetByUID(authUser.ID); err == nil && user != nil {
				userCtx.DisplayName = user.DisplayName
				if userCtx.Email == "" {
					userCtx.Email = user.Email
				}
			}
		}

		usercontext.SetUserContext(c, userCtx)
		return c.Next()
	}
}

func extractBearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
