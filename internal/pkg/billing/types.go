package billing

import "time"

// SettlementInput carries everything a verified checkout-completion event
// contributes to an account update.
type SettlementInput struct {
	Email                string
	Plan                 string
	StripeCustomerID     string
	StripeSubscriptionID string
	Now                  time.Time
}

// CheckoutCompletedEvent is the normalized shape of a verified
// checkout.session.completed webhook delivery.
type CheckoutCompletedEvent struct {
	EventID              string
	EventType            string
	Email                string
	Plan                 string
	StripeCustomerID     string
	StripeSubscriptionID string
	OccurredAt           time.Time
	RawPayload           string
}

// CheckoutSessionInput is the request shape for creating a provider-hosted
// checkout session.
type CheckoutSessionInput struct {
	Email             string
	Plan              string
	PreferredLanguage string
}
