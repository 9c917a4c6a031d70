package router

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/CodeLensApp/CodeLens/app/controllers"
	"github.com/CodeLensApp/CodeLens/app/repository"
	"github.com/CodeLensApp/CodeLens/internal/pkg/ai"
	"github.com/CodeLensApp/CodeLens/internal/pkg/audit"
	"github.com/CodeLensApp/CodeLens/internal/pkg/billing"
	"github.com/CodeLensApp/CodeLens/internal/pkg/cache"
	"github.com/CodeLensApp/CodeLens/internal/pkg/database"
	"github.com/CodeLensApp/CodeLens/internal/pkg/identity"
	"github.com/CodeLensApp/CodeLens/internal/pkg/metrics/counter"
	"github.com/CodeLensApp/CodeLens/internal/pkg/oauth"
)

// Router installs a set of routes on the app
type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter wires the real collaborators and installs all API routes.
func InstallRouter(app *fiber.App) {
	oauth.Setup()

	db := database.GetDB()
	repository.InitializeFactory(db)
	repos := repository.GetGlobalRepositories()

	identityClient := identity.NewClientFromEnv()
	billingSvc := billing.NewServiceFromDB(db)

	webhook := controllers.NewWebhookController(billingSvc, nil, "")
	if archiver, err := audit.SetupFromEnv(); err != nil {
		log.Printf("audit archive disabled: %v", err)
	} else if archiver != nil {
		webhook = controllers.NewWebhookController(billingSvc, archiver, "")
	}

	deps := Dependencies{
		Auth:     controllers.NewAuthController(identityClient, repos.User),
		Checkout: controllers.NewCheckoutController(billing.NewStripeClientFromEnv()),
		Webhook:  webhook,
		AI: controllers.NewAIController(
			ai.NewServiceFromEnv(),
			billingSvc,
			redisResultCache{},
			func(email string) {
				if err := counter.AddUsage(email); err != nil {
					log.Printf("usage metering failed for %s: %v", email, err)
				}
			},
		),
		Account:  controllers.NewAccountController(repos.User, repos.Subscription),
		Verifier: identityClient,
		Users:    repos.User,
	}

	setup(app, NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}

// redisResultCache adapts the package-level cache helpers to the controller's
// cache seam.
type redisResultCache struct{}

func (redisResultCache) Get(key string) (string, error) {
	return cache.Get(key)
}

func (redisResultCache) Set(key string, value interface{}, expiration time.Duration) error {
	return cache.Set(key, value, expiration)
}
