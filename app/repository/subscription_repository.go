package repository

import (
	"strings"

	"github.com/CodeLensApp/CodeLens/app/models"
	"gorm.io/gorm"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// GetByEmail retrieves the credit account for an email address
func (r *subscriptionRepository) GetByEmail(email string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("email = ?", strings.TrimSpace(email)).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Create inserts a fresh credit account
func (r *subscriptionRepository) Create(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

// Update persists the full account row
func (r *subscriptionRepository) Update(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

// DebitCredits decrements the balance only when it covers the amount. The
// guard lives in the WHERE clause so two concurrent debits cannot drive the
// balance negative.
func (r *subscriptionRepository) DebitCredits(email string, amount int64) (int64, error) {
	tx := r.db.Model(&models.Subscription{}).
		Where("email = ? AND credits >= ?", strings.TrimSpace(email), amount).
		UpdateColumn("credits", gorm.Expr("credits - ?", amount))
	return tx.RowsAffected, tx.Error
}

// AddLifetimeUsage folds flushed usage counters into the account row
func (r *subscriptionRepository) AddLifetimeUsage(email string, delta int64) error {
	return r.db.Model(&models.Subscription{}).
		Where("email = ?", strings.TrimSpace(email)).
		UpdateColumn("lifetime_usage", gorm.Expr("lifetime_usage + ?", delta)).Error
}
