package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/CodeLensApp/CodeLens/app/models"
	"github.com/CodeLensApp/CodeLens/internal/pkg/env"
)

const (
	defaultStripeAPIBaseURL = "https://api.stripe.com"

	// EventTypeCheckoutCompleted is the only event type that settles credits.
	EventTypeCheckoutCompleted = "checkout.session.completed"

	// DefaultSignatureTolerance bounds how stale a signed timestamp may be
	// before a replayed payload is rejected.
	DefaultSignatureTolerance = 5 * time.Minute
)

// StripeClient talks to the payments provider REST API. All endpoints and
// credentials come from the environment; tests point APIBaseURL at a local
// httptest server.
type StripeClient struct {
	SecretKey      string
	APIBaseURL     string
	MonthlyPriceID string
	YearlyPriceID  string
	SuccessURL     string
	CancelURL      string

	HTTPClient *http.Client
}

// CheckoutSession is the subset of the provider response the API returns to
// clients.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// PaymentIntent carries the client secret the frontend needs to confirm a
// one-time payment.
type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

// WebhookEvent mirrors the provider event envelope.
type WebhookEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			Customer     string            `json:"customer"`
			Subscription string            `json:"subscription"`
			Metadata     map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// NewStripeClientFromEnv builds the payments client from environment config.
func NewStripeClientFromEnv() *StripeClient {
	frontend := strings.TrimRight(env.GetEnv("FRONTEND_BASE_URL", "http://localhost:3000"), "/")
	return &StripeClient{
		SecretKey:      strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		APIBaseURL:     strings.TrimRight(env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL), "/"),
		MonthlyPriceID: strings.TrimSpace(env.GetEnv("STRIPE_MONTHLY_PRICE_ID", "")),
		YearlyPriceID:  strings.TrimSpace(env.GetEnv("STRIPE_YEARLY_PRICE_ID", "")),
		SuccessURL:     env.GetEnv("CHECKOUT_SUCCESS_URL", frontend+"/success"),
		CancelURL:      env.GetEnv("CHECKOUT_CANCEL_URL", frontend+"/cancel"),
		HTTPClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// CreateCheckoutSession opens a provider-hosted subscription checkout. The
// email and plan ride along as metadata so the completion webhook can settle
// without a second lookup.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*CheckoutSession, error) {
	price, err := c.priceForPlan(in.Plan)
	if err != nil {
		return nil, err
	}
	lang := strings.TrimSpace(in.PreferredLanguage)
	if lang == "" {
		lang = "python"
	}

	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("line_items[0][price]", price)
	form.Set("line_items[0][quantity]", "1")
	form.Set("customer_email", strings.TrimSpace(in.Email))
	form.Set("success_url", c.SuccessURL)
	form.Set("cancel_url", c.CancelURL)
	form.Set("metadata[email]", strings.TrimSpace(in.Email))
	form.Set("metadata[plan]", normalizePlan(in.Plan))
	form.Set("metadata[preferred_language]", lang)

	var session CheckoutSession
	if err := c.postForm(ctx, "/v1/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	if session.URL == "" {
		return nil, errors.New("checkout session response missing url")
	}
	return &session, nil
}

// CreatePaymentIntent creates a card payment intent for a one-time charge.
func (c *StripeClient) CreatePaymentIntent(ctx context.Context, amount int64, currency string) (*PaymentIntent, error) {
	if amount <= 0 {
		return nil, errors.New("amount must be positive")
	}
	cur := strings.ToLower(strings.TrimSpace(currency))
	if cur == "" {
		return nil, errors.New("currency is required")
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", cur)
	form.Set("payment_method_types[0]", "card")

	var intent PaymentIntent
	if err := c.postForm(ctx, "/v1/payment_intents", form, &intent); err != nil {
		return nil, err
	}
	if intent.ClientSecret == "" {
		return nil, errors.New("payment intent response missing client_secret")
	}
	return &intent, nil
}

func (c *StripeClient) priceForPlan(plan string) (string, error) {
	switch normalizePlan(plan) {
	case models.PlanMonthly:
		if c.MonthlyPriceID == "" {
			return "", errors.New("STRIPE_MONTHLY_PRICE_ID is not configured")
		}
		return c.MonthlyPriceID, nil
	case models.PlanAnnual:
		if c.YearlyPriceID == "" {
			return "", errors.New("STRIPE_YEARLY_PRICE_ID is not configured")
		}
		return c.YearlyPriceID, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPlan, plan)
	}
}

func (c *StripeClient) postForm(ctx context.Context, path string, form url.Values, out any) error {
	if c.SecretKey == "" {
		return errors.New("STRIPE_SECRET_KEY is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("payments provider request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("payments provider %s failed: status=%d body=%s", path, resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, out)
}

// VerifyWebhookSignature checks the provider signature header against the
// endpoint secret. The scheme is HMAC-SHA256 over "<timestamp>.<payload>"
// with the timestamp bounded by tolerance to blunt replays.
func VerifyWebhookSignature(payload []byte, signatureHeader, secret string, tolerance time.Duration) error {
	header := strings.TrimSpace(signatureHeader)
	if header == "" || strings.TrimSpace(secret) == "" {
		return ErrSignatureInvalid
	}

	var timestamp int64
	var candidates [][]byte
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrSignatureInvalid
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(v)
			if err != nil {
				continue
			}
			candidates = append(candidates, sig)
		}
	}
	if timestamp == 0 || len(candidates) == 0 {
		return ErrSignatureInvalid
	}

	if tolerance > 0 {
		age := time.Since(time.Unix(timestamp, 0))
		if age > tolerance || age < -tolerance {
			return ErrSignatureInvalid
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sig := range candidates {
		if hmac.Equal(expected, sig) {
			return nil
		}
	}
	return ErrSignatureInvalid
}

// ParseEvent decodes the provider event envelope from a raw webhook body.
func ParseEvent(payload []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("malformed event payload: %w", err)
	}
	if strings.TrimSpace(ev.ID) == "" || strings.TrimSpace(ev.Type) == "" {
		return nil, errors.New("event payload missing id or type")
	}
	return &ev, nil
}

// CheckoutCompletedFromEvent lifts the settlement-relevant fields out of a
// verified event envelope.
func CheckoutCompletedFromEvent(ev *WebhookEvent, rawPayload []byte) CheckoutCompletedEvent {
	var occurredAt time.Time
	if ev.Created > 0 {
		occurredAt = time.Unix(ev.Created, 0)
	}
	return CheckoutCompletedEvent{
		EventID:              ev.ID,
		EventType:            ev.Type,
		Email:                ev.Data.Object.Metadata["email"],
		Plan:                 ev.Data.Object.Metadata["plan"],
		StripeCustomerID:     ev.Data.Object.Customer,
		StripeSubscriptionID: ev.Data.Object.Subscription,
		OccurredAt:           occurredAt,
		RawPayload:           string(rawPayload),
	}
}
