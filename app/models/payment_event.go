package models

import "time"

// PaymentEvent is the append-only ledger of processed payment-provider
// events. The provider-issued event id carries a unique index; the presence
// of a row is the sole idempotency witness. Rows are never updated or
// deleted.
type PaymentEvent struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ProviderEventID string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_payment_events_provider_event" json:"provider_event_id"`
	EventType       string    `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Email           string    `gorm:"type:varchar(200);not null;index" json:"email"`
	Plan            string    `gorm:"type:varchar(50);not null" json:"plan"`
	OccurredAt      time.Time `gorm:"type:timestamp;not null" json:"occurred_at"`
	PayloadJSON     string    `gorm:"type:longtext" json:"payload_json"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
