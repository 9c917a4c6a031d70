package oauth

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/middleware/session"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/CodeLensApp/CodeLens/internal/pkg/cache"
	"github.com/CodeLensApp/CodeLens/internal/pkg/env"
)

// Setup initializes the Google OAuth provider and its session store based on
// environment variables. It is safe to call multiple times; the provider will
// just be re-registered.
func Setup() {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if base == "" {
		base = "http://localhost:" + env.GetEnv("APP_PORT", "3001")
	}

	goth.UseProviders(
		google.New(
			env.GetEnv("GOOGLE_KEY", ""),
			env.GetEnv("GOOGLE_SECRET", ""),
			base+"/api/auth/google/callback",
			"email", "profile",
		),
	)

	// OAuth state via Redis, separate database from the app cache
	cacheOpts := cache.GetClient().Options()
	host, port := "127.0.0.1", 6379
	username, password := "", ""
	if cacheOpts != nil {
		username, password = cacheOpts.Username, cacheOpts.Password
		if cacheOpts.Addr != "" {
			if h, p, err := net.SplitHostPort(cacheOpts.Addr); err == nil {
				host = h
				if parsed, e := strconv.Atoi(p); e == nil {
					port = parsed
				}
			} else {
				host = cacheOpts.Addr
			}
		}
	}

	gothfiber.SessionStore = session.New(session.Config{
		Storage: redisstorage.New(redisstorage.Config{
			Host:     host,
			Port:     port,
			Username: username,
			Password: password,
			Database: 2,
			Reset:    false,
		}),
		KeyLookup:      "cookie:" + gothic.SessionName,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		CookieSecure:   !env.IsDev(),
		Expiration:     72 * time.Hour,
	})
}
