package controllers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"
	"gorm.io/gorm"

	"github.com/CodeLensApp/CodeLens/app/models"
	"github.com/CodeLensApp/CodeLens/app/repository"
	"github.com/CodeLensApp/CodeLens/internal/pkg/env"
	"github.com/CodeLensApp/CodeLens/internal/pkg/identity"
)

// identityProvider is the slice of the identity client the controller needs.
type identityProvider interface {
	SignUp(ctx context.Context, email, password string) (*identity.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error)
}

// AuthController handles registration, login and the Google OAuth flow.
// Credentials live at the identity provider; profile rows live in our own
// users table.
type AuthController struct {
	provider identityProvider
	users    repository.UserRepository
}

// NewAuthController wires the auth controller.
func NewAuthController(provider identityProvider, users repository.UserRepository) *AuthController {
	return &AuthController{provider: provider, users: users}
}

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleRegister creates a credential record at the provider and a profile
// row in our database
func (a *AuthController) HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	session, err := a.provider.SignUp(c.UserContext(), req.Email, req.Password)
	if err != nil {
		log.Printf("registration failed for %s: %v", req.Email, err)
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Registration failed")
	}

	user := models.NewUser(session.User.ID, req.Email, req.DisplayName, models.ProviderEmail, models.ProviderTypeEmail)
	if err := a.users.Create(user); err != nil {
		log.Printf("user row creation failed for %s: %v", req.Email, err)
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Registration failed")
	}

	return c.JSON(fiber.Map{"user": user, "session": session})
}

// HandleLogin exchanges credentials for a session
func (a *AuthController) HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	session, err := a.provider.SignInWithPassword(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login failed")
	}

	user, err := a.users.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login failed")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}

	return c.JSON(fiber.Map{"user": user, "session": session})
}

// HandleGoogleBegin redirects to the Google consent screen
func (a *AuthController) HandleGoogleBegin(c *fiber.Ctx) error {
	return gothfiber.BeginAuthHandler(c)
}

// HandleGoogleCallback completes the OAuth dance, provisions a profile on
// first contact and returns a provider session
func (a *AuthController) HandleGoogleCallback(c *fiber.Ctx) error {
	gothUser, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		log.Printf("google oauth callback failed: %v", err)
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Authentication failed")
	}
	if gothUser.Email == "" {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Google account has no email")
	}

	user, err := a.users.GetByEmail(gothUser.Email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}

	password := socialPassword(gothUser.Email)
	if user == nil || errors.Is(err, gorm.ErrRecordNotFound) {
		session, err := a.provider.SignUp(c.UserContext(), gothUser.Email, password)
		if err != nil {
			log.Printf("google provisioning failed for %s: %v", gothUser.Email, err)
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Authentication failed")
		}
		user = models.NewUser(session.User.ID, gothUser.Email, gothUser.Name, models.ProviderGoogle, models.ProviderTypeSocial)
		if err := a.users.Create(user); err != nil {
			log.Printf("user row creation failed for %s: %v", gothUser.Email, err)
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Authentication failed")
		}
		return c.JSON(fiber.Map{"user": user, "session": session})
	}

	session, err := a.provider.SignInWithPassword(c.UserContext(), gothUser.Email, password)
	if err != nil {
		log.Printf("google session exchange failed for %s: %v", gothUser.Email, err)
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Authentication failed")
	}
	return c.JSON(fiber.Map{"user": user, "session": session})
}

// socialPassword derives the provider-side password for OAuth accounts.
// OAuth users never see this credential; it only links the Google identity to
// a record at the identity provider.
func socialPassword(email string) string {
	mac := hmac.New(sha256.New, []byte(env.GetEnv("OAUTH_PASSWORD_SECRET", "")))
	mac.Write([]byte(email))
	return hex.EncodeToString(mac.Sum(nil))
}
