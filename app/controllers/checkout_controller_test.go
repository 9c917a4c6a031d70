package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeLensApp/CodeLens/internal/pkg/billing"
)

type fakeProvider struct {
	session *billing.CheckoutSession
	intent  *billing.PaymentIntent
	err     error

	lastInput  billing.CheckoutSessionInput
	lastAmount int64
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, in billing.CheckoutSessionInput) (*billing.CheckoutSession, error) {
	f.lastInput = in
	return f.session, f.err
}

func (f *fakeProvider) CreatePaymentIntent(_ context.Context, amount int64, _ string) (*billing.PaymentIntent, error) {
	f.lastAmount = amount
	return f.intent, f.err
}

func newCheckoutApp(provider *fakeProvider) *fiber.App {
	app := fiber.New()
	cc := NewCheckoutController(provider)
	app.Post("/api/checkout", cc.HandleCheckout)
	app.Post("/api/create-intent", cc.HandleCreateIntent)
	return app
}

func TestHandleCheckout(t *testing.T) {
	provider := &fakeProvider{session: &billing.CheckoutSession{ID: "cs_1", URL: "https://checkout.example/cs_1"}}
	app := newCheckoutApp(provider)

	status, body := postJSON(t, app, "/api/checkout", map[string]any{
		"email": "buyer@example.com",
		"plan":  "annual",
	})
	assert.Equal(t, fiber.StatusOK, status)

	var out map[string]string
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "https://checkout.example/cs_1", out["url"])

	assert.Equal(t, "buyer@example.com", provider.lastInput.Email)
	assert.Equal(t, "annual", provider.lastInput.Plan)
	assert.Equal(t, "python", provider.lastInput.PreferredLanguage)
}

func TestHandleCheckoutUnknownPlan(t *testing.T) {
	provider := &fakeProvider{err: fmt.Errorf("%w: \"lifetime\"", billing.ErrInvalidPlan)}
	app := newCheckoutApp(provider)

	status, _ := postJSON(t, app, "/api/checkout", map[string]any{
		"email": "buyer@example.com",
		"plan":  "lifetime",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestHandleCheckoutMissingFields(t *testing.T) {
	provider := &fakeProvider{}
	app := newCheckoutApp(provider)

	status, _ := postJSON(t, app, "/api/checkout", map[string]any{"plan": "monthly"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = postJSON(t, app, "/api/checkout", map[string]any{"email": "not-an-email", "plan": "monthly"})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestHandleCreateIntent(t *testing.T) {
	provider := &fakeProvider{intent: &billing.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret"}}
	app := newCheckoutApp(provider)

	status, body := postJSON(t, app, "/api/create-intent", map[string]any{
		"amount":   2000,
		"currency": "usd",
	})
	assert.Equal(t, fiber.StatusOK, status)

	var out map[string]string
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "pi_1_secret", out["clientSecret"])
	assert.Equal(t, int64(2000), provider.lastAmount)
}

func TestHandleCreateIntentValidation(t *testing.T) {
	provider := &fakeProvider{}
	app := newCheckoutApp(provider)

	status, _ := postJSON(t, app, "/api/create-intent", map[string]any{"currency": "usd"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = postJSON(t, app, "/api/create-intent", map[string]any{"amount": 2000})
	assert.Equal(t, fiber.StatusBadRequest, status)
}
