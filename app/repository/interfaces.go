package repository

import (
	"github.com/CodeLensApp/CodeLens/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user profile database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByUID(uid string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Count() (int64, error)
}

// SubscriptionRepository defines the interface for credit account operations
type SubscriptionRepository interface {
	GetByEmail(email string) (*models.Subscription, error)
	Create(sub *models.Subscription) error
	Update(sub *models.Subscription) error
	// DebitCredits decrements the balance in a single conditional write and
	// reports how many rows changed. Zero rows means the balance was short
	// (or the account is missing); the balance is left untouched.
	DebitCredits(email string, amount int64) (int64, error)
	AddLifetimeUsage(email string, delta int64) error
}

// PaymentEventRepository defines the interface for the processed-event ledger
type PaymentEventRepository interface {
	IsProcessed(providerEventID string) (bool, error)
	// CreateIfNotProcessed inserts the event row relying on the unique index
	// on the provider event id. It reports created=false when a row with the
	// same id already exists. The insert is the idempotency serialization
	// point for concurrent deliveries.
	CreateIfNotProcessed(event *models.PaymentEvent) (bool, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Subscription SubscriptionRepository
	PaymentEvent PaymentEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Subscription: NewSubscriptionRepository(db),
		PaymentEvent: NewPaymentEventRepository(db),
	}
}
