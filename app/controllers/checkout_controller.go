package controllers

import (
	"context"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/CodeLensApp/CodeLens/internal/pkg/billing"
)

// paymentProvider is the slice of the Stripe client the controller needs.
type paymentProvider interface {
	CreateCheckoutSession(ctx context.Context, in billing.CheckoutSessionInput) (*billing.CheckoutSession, error)
	CreatePaymentIntent(ctx context.Context, amount int64, currency string) (*billing.PaymentIntent, error)
}

// CheckoutController starts payment flows at the provider
type CheckoutController struct {
	provider paymentProvider
}

// NewCheckoutController wires the checkout controller.
func NewCheckoutController(provider paymentProvider) *CheckoutController {
	return &CheckoutController{provider: provider}
}

type checkoutRequest struct {
	Email             string `json:"email" validate:"required,email"`
	Plan              string `json:"plan" validate:"required"`
	PreferredLanguage string `json:"preferred_language"`
}

type createIntentRequest struct {
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	Currency string `json:"currency" validate:"required"`
}

// HandleCheckout creates a hosted checkout session and returns its URL
func (cc *CheckoutController) HandleCheckout(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.PreferredLanguage == "" {
		req.PreferredLanguage = "python"
	}

	session, err := cc.provider.CreateCheckoutSession(c.UserContext(), billing.CheckoutSessionInput{
		Email:             req.Email,
		Plan:              req.Plan,
		PreferredLanguage: req.PreferredLanguage,
	})
	if err != nil {
		if errors.Is(err, billing.ErrInvalidPlan) {
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "Unknown plan")
		}
		log.Printf("checkout session creation failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Checkout session creation failed")
	}

	return c.JSON(fiber.Map{"url": session.URL})
}

// HandleCreateIntent creates a one-time payment intent
func (cc *CheckoutController) HandleCreateIntent(c *fiber.Ctx) error {
	var req createIntentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	intent, err := cc.provider.CreatePaymentIntent(c.UserContext(), req.Amount, req.Currency)
	if err != nil {
		log.Printf("payment intent creation failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Payment intent creation failed")
	}

	return c.JSON(fiber.Map{"clientSecret": intent.ClientSecret})
}
