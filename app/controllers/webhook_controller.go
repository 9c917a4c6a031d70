package controllers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/CodeLensApp/CodeLens/app/models"
	"github.com/CodeLensApp/CodeLens/internal/pkg/billing"
	"github.com/CodeLensApp/CodeLens/internal/pkg/env"
)

// settlementProcessor is the slice of the billing service the webhook needs.
type settlementProcessor interface {
	ProcessCheckoutCompleted(ctx context.Context, ev billing.CheckoutCompletedEvent) (*models.Subscription, bool, error)
}

// eventArchiver stores raw provider payloads for reconciliation. Nil
// disables archiving.
type eventArchiver interface {
	ArchiveEvent(ctx context.Context, eventID string, occurredAt time.Time, payload []byte) error
}

// WebhookController receives payment provider callbacks
type WebhookController struct {
	billing  settlementProcessor
	archiver eventArchiver
	secret   string
}

// NewWebhookController wires the webhook controller. The signing secret
// defaults to STRIPE_WEBHOOK_SECRET when empty.
func NewWebhookController(billingSvc settlementProcessor, archiver eventArchiver, secret string) *WebhookController {
	if secret == "" {
		secret = env.GetEnv("STRIPE_WEBHOOK_SECRET", "")
	}
	return &WebhookController{billing: billingSvc, archiver: archiver, secret: secret}
}

// HandleWebhook verifies, records and settles provider events. The provider
// retries on any non-2xx, so every path that must not be redelivered
// acknowledges with 200.
func (wc *WebhookController) HandleWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	sig := c.Get("Stripe-Signature")

	if err := billing.VerifyWebhookSignature(payload, sig, wc.secret, billing.DefaultSignatureTolerance); err != nil {
		log.Printf("webhook signature verification failed: %v", err)
		return c.Status(fiber.StatusBadRequest).SendString("Webhook Error: signature verification failed")
	}

	event, err := billing.ParseEvent(payload)
	if err != nil {
		log.Printf("webhook payload unparseable: %v", err)
		return c.Status(fiber.StatusBadRequest).SendString("Webhook Error: invalid payload")
	}

	wc.archive(c.UserContext(), event, payload)

	if event.Type != billing.EventTypeCheckoutCompleted {
		// Unhandled event types are acknowledged so the provider stops
		// retrying them.
		return c.JSON(fiber.Map{"received": true})
	}

	ev := billing.CheckoutCompletedFromEvent(event, payload)
	account, duplicate, err := wc.billing.ProcessCheckoutCompleted(c.UserContext(), ev)
	if err != nil {
		// Includes unknown plans: the event stays unmarked in the ledger so a
		// fixed deployment can settle the redelivery.
		log.Printf("webhook settlement failed for event %s: %v", ev.EventID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "settlement failed"})
	}
	if duplicate {
		return c.JSON(fiber.Map{"received": true, "duplicate": true})
	}

	log.Printf("user %s subscribed, plan %s, balance %d", ev.Email, ev.Plan, account.Credits)
	return c.JSON(fiber.Map{"received": true})
}

func (wc *WebhookController) archive(ctx context.Context, event *billing.WebhookEvent, payload []byte) {
	if wc.archiver == nil {
		return
	}
	occurredAt := time.Unix(event.Created, 0)
	if event.Created <= 0 {
		occurredAt = time.Now()
	}
	if err := wc.archiver.ArchiveEvent(ctx, event.ID, occurredAt, payload); err != nil {
		log.Printf("webhook archive failed for event %s: %v", event.ID, err)
	}
}
