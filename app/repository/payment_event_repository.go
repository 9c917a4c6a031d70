package repository

import (
	"strings"

	"github.com/CodeLensApp/CodeLens/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// paymentEventRepository implements the PaymentEventRepository interface
type paymentEventRepository struct {
	db *gorm.DB
}

// NewPaymentEventRepository creates a new payment event ledger instance
func NewPaymentEventRepository(db *gorm.DB) PaymentEventRepository {
	return &paymentEventRepository{db: db}
}

// IsProcessed reports whether a ledger row exists for the event id
func (r *paymentEventRepository) IsProcessed(providerEventID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.PaymentEvent{}).
		Where("provider_event_id = ?", strings.TrimSpace(providerEventID)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateIfNotProcessed inserts the ledger row, relying on the unique index on
// provider_event_id. RowsAffected == 0 means another delivery already wrote
// the row; the caller treats that as a duplicate, not an error.
func (r *paymentEventRepository) CreateIfNotProcessed(event *models.PaymentEvent) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}
