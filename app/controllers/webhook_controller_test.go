package controllers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeLensApp/CodeLens/app/models"
	"github.com/CodeLensApp/CodeLens/internal/pkg/billing"
)

const webhookTestSecret = "whsec_test"

type fakeSettler struct {
	account   *models.Subscription
	duplicate bool
	err       error

	calls  int
	lastEv billing.CheckoutCompletedEvent
}

func (f *fakeSettler) ProcessCheckoutCompleted(_ context.Context, ev billing.CheckoutCompletedEvent) (*models.Subscription, bool, error) {
	f.calls++
	f.lastEv = ev
	return f.account, f.duplicate, f.err
}

type fakeArchiver struct {
	calls   int
	lastID  string
	payload []byte
}

func (f *fakeArchiver) ArchiveEvent(_ context.Context, eventID string, _ time.Time, payload []byte) error {
	f.calls++
	f.lastID = eventID
	f.payload = payload
	return nil
}

func signWebhookPayload(payload []byte, secret string, ts time.Time) string {
	signed := fmt.Sprintf("%d.%s", ts.Unix(), payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signed))
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func newWebhookApp(settler *fakeSettler, archiver *fakeArchiver) *fiber.App {
	app := fiber.New()
	var wc *WebhookController
	if archiver != nil {
		wc = NewWebhookController(settler, archiver, webhookTestSecret)
	} else {
		wc = NewWebhookController(settler, nil, webhookTestSecret)
	}
	app.Post("/api/webhook", wc.HandleWebhook)
	return app
}

func postWebhook(t *testing.T, app *fiber.App, payload []byte, signature string) int {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode
}

func checkoutPayload(eventID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": "checkout.session.completed",
		"created": 1735689600,
		"data": {
			"object": {
				"customer": "cus_123",
				"subscription": "sub_456",
				"metadata": {"email": "buyer@example.com", "plan": "annual", "preferred_language": "python"}
			}
		}
	}`, eventID))
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	settler := &fakeSettler{}
	app := newWebhookApp(settler, nil)

	payload := checkoutPayload("evt_1")
	status := postWebhook(t, app, payload, "t=123,v1=deadbeef")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status = postWebhook(t, app, payload, "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	assert.Equal(t, 0, settler.calls, "unverified payloads must never settle")
}

func TestWebhookSettlesCheckoutCompleted(t *testing.T) {
	settler := &fakeSettler{account: &models.Subscription{Email: "buyer@example.com", Credits: 600}}
	archiver := &fakeArchiver{}
	app := newWebhookApp(settler, archiver)

	payload := checkoutPayload("evt_2")
	status := postWebhook(t, app, payload, signWebhookPayload(payload, webhookTestSecret, time.Now()))
	assert.Equal(t, fiber.StatusOK, status)

	require.Equal(t, 1, settler.calls)
	assert.Equal(t, "evt_2", settler.lastEv.EventID)
	assert.Equal(t, "buyer@example.com", settler.lastEv.Email)
	assert.Equal(t, "annual", settler.lastEv.Plan)
	assert.Equal(t, "cus_123", settler.lastEv.StripeCustomerID)
	assert.Equal(t, "sub_456", settler.lastEv.StripeSubscriptionID)

	require.Equal(t, 1, archiver.calls)
	assert.Equal(t, "evt_2", archiver.lastID)
	assert.Equal(t, payload, archiver.payload)
}

func TestWebhookAcknowledgesDuplicates(t *testing.T) {
	settler := &fakeSettler{duplicate: true}
	app := newWebhookApp(settler, nil)

	payload := checkoutPayload("evt_3")
	status := postWebhook(t, app, payload, signWebhookPayload(payload, webhookTestSecret, time.Now()))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 1, settler.calls)
}

func TestWebhookIgnoresOtherEventTypes(t *testing.T) {
	settler := &fakeSettler{}
	app := newWebhookApp(settler, nil)

	payload := []byte(`{"id": "evt_4", "type": "invoice.paid", "created": 1735689600, "data": {"object": {}}}`)
	status := postWebhook(t, app, payload, signWebhookPayload(payload, webhookTestSecret, time.Now()))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 0, settler.calls)
}

func TestWebhookSettlementFailureKeepsRetry(t *testing.T) {
	settler := &fakeSettler{err: errors.New("db down")}
	app := newWebhookApp(settler, nil)

	payload := checkoutPayload("evt_5")
	status := postWebhook(t, app, payload, signWebhookPayload(payload, webhookTestSecret, time.Now()))
	assert.Equal(t, fiber.StatusInternalServerError, status)
}

func TestWebhookUnknownPlanFailsClosed(t *testing.T) {
	settler := &fakeSettler{err: fmt.Errorf("%w: \"lifetime\"", billing.ErrInvalidPlan)}
	app := newWebhookApp(settler, nil)

	payload := checkoutPayload("evt_6")
	status := postWebhook(t, app, payload, signWebhookPayload(payload, webhookTestSecret, time.Now()))
	assert.Equal(t, fiber.StatusInternalServerError, status)
}
