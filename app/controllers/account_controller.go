package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/CodeLensApp/CodeLens/app/repository"
	"github.com/CodeLensApp/CodeLens/internal/pkg/usercontext"
)

// AccountController serves the authenticated account view
type AccountController struct {
	users         repository.UserRepository
	subscriptions repository.SubscriptionRepository
}

// NewAccountController wires the account controller.
func NewAccountController(users repository.UserRepository, subscriptions repository.SubscriptionRepository) *AccountController {
	return &AccountController{users: users, subscriptions: subscriptions}
}

// HandleGetAccount returns profile and credit balance for the authenticated user
func (a *AccountController) HandleGetAccount(c *fiber.Ctx) error {
	email, err := requireUserEmail(c)
	if err != nil {
		return err
	}

	userCtx := usercontext.GetUserContext(c)
	user, err := a.users.GetByUID(userCtx.UID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}

	response := fiber.Map{
		"email": email,
		"subscription": fiber.Map{
			"credits":        0,
			"active":         false,
			"lifetime_usage": 0,
		},
	}
	if user != nil {
		response["uid"] = user.UID
		response["display_name"] = user.DisplayName
		response["providers"] = user.Providers
		response["created_at"] = user.CreatedAt.UTC().Format(time.RFC3339)
	}

	sub, err := a.subscriptions.GetByEmail(email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load subscription")
	}
	if sub != nil {
		response["subscription"] = fiber.Map{
			"credits":            sub.Credits,
			"active":             sub.IsActive(time.Now()),
			"preferred_language": sub.PreferredLanguage,
			"subscribed_at":      formatTimePtr(sub.SubscribedAt),
			"ends_at":            formatTimePtr(sub.SubscriptionEndsAt),
			"lifetime_usage":     sub.LifetimeUsage,
		}
	}

	return c.JSON(response)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
