package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/CodeLensApp/CodeLens/app/controllers"
	"github.com/CodeLensApp/CodeLens/app/repository"
	"github.com/CodeLensApp/CodeLens/internal/pkg/cache"
	"github.com/CodeLensApp/CodeLens/internal/pkg/middleware"
)

// Dependencies carries the constructed controllers and the auth seam the API
// routes are built from.
type Dependencies struct {
	Auth     *controllers.AuthController
	Checkout *controllers.CheckoutController
	Webhook  *controllers.WebhookController
	AI       *controllers.AIController
	Account  *controllers.AccountController
	Verifier middleware.TokenVerifier
	Users    repository.UserRepository
}

type ApiRouter struct {
	deps Dependencies
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}

func (h *ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        60,
		Expiration: time.Minute,
		Storage:    limiterStorage(),
		// The provider retries webhooks on failure; they bypass the client
		// rate limit.
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/api/webhook"
		},
	}))

	api.Post("/webhook", h.deps.Webhook.HandleWebhook)
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	api.Post("/auth/register", h.deps.Auth.HandleRegister)
	api.Post("/auth/login", h.deps.Auth.HandleLogin)
	api.Get("/auth/google", h.deps.Auth.HandleGoogleBegin)
	api.Get("/auth/google/callback", h.deps.Auth.HandleGoogleCallback)

	api.Post("/checkout", h.deps.Checkout.HandleCheckout)
	api.Post("/create-intent", h.deps.Checkout.HandleCreateIntent)

	requireAuth := middleware.RequireAuth(h.deps.Verifier, h.deps.Users)
	api.Get("/account", requireAuth, h.deps.Account.HandleGetAccount)
	api.Post("/extract", requireAuth, h.deps.AI.HandleExtract)
	api.Post("/generate", requireAuth, h.deps.AI.HandleGenerate)
	api.Post("/debug", requireAuth, h.deps.AI.HandleDebug)

	internal := api.Group("/internal", middleware.RequireInternalKey())
	internal.Post("/usage/flush", controllers.HandleFlushUsage)
}

// limiterStorage keeps rate limit buckets in Redis so limits hold across
// instances. Database 3 keeps them apart from cache and session data.
func limiterStorage() fiber.Storage {
	opts := cache.GetClient().Options()
	host, port := "127.0.0.1", 6379
	username, password := "", ""
	if opts != nil {
		username, password = opts.Username, opts.Password
		if opts.Addr != "" {
			if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
				host = h
				if parsed, e := strconv.Atoi(p); e == nil {
					port = parsed
				}
			} else {
				host = opts.Addr
			}
		}
	}
	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		Database: 3,
		Reset:    false,
	})
}
