package models

import "time"

// Plan identifiers accepted from checkout metadata. Anything else is rejected
// during settlement.
const (
	PlanMonthly = "monthly"
	PlanAnnual  = "annual"
)

// Subscription is the per-account credit balance, keyed by email. Credits are
// granted by webhook settlement and consumed by the AI-backed operations.
// The balance never goes negative: debits are conditional writes.
type Subscription struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	Email                string     `gorm:"type:varchar(200);not null;uniqueIndex" json:"email"`
	Credits              int64      `gorm:"not null;default:0" json:"credits"`
	PreferredLanguage    string     `gorm:"type:varchar(50);default:'python'" json:"preferred_language"`
	SubscribedAt         *time.Time `gorm:"type:timestamp;default:null" json:"subscribed_at,omitempty"`
	SubscriptionEndsAt   *time.Time `gorm:"type:timestamp;default:null" json:"subscription_ends_at,omitempty"`
	StripeCustomerID     string     `gorm:"type:varchar(191);default:''" json:"stripe_customer_id"`
	StripeSubscriptionID string     `gorm:"type:varchar(191);default:''" json:"stripe_subscription_id"`
	LifetimeUsage        int64      `gorm:"not null;default:0" json:"lifetime_usage"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActive reports whether the subscription period has not lapsed at t.
func (s *Subscription) IsActive(t time.Time) bool {
	return s.SubscriptionEndsAt != nil && s.SubscriptionEndsAt.After(t)
}
