package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/CodeLensApp/CodeLens/internal/pkg/metrics/counter"
)

// HandleFlushUsage drains pending usage counters from Redis into the
// database. Exposed on the internal API for the cron that runs it.
func HandleFlushUsage(c *fiber.Ctx) error {
	if err := counter.FlushAll(); err != nil {
		log.Printf("usage flush failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Usage flush failed")
	}
	return c.JSON(fiber.Map{"flushed": true})
}
