package billing

import (
	"gorm.io/gorm"

	"github.com/CodeLensApp/CodeLens/app/models"
	"github.com/CodeLensApp/CodeLens/app/repository"
)

// Repository provides the DB operations used by the billing service.
type Repository interface {
	GetSubscriptionByEmail(email string) (*models.Subscription, error)
	CreateSubscription(sub *models.Subscription) error
	UpdateSubscription(sub *models.Subscription) error
	DebitCredits(email string, amount int64) (int64, error)
	IsEventProcessed(providerEventID string) (bool, error)
	CreateEventIfNotProcessed(event *models.PaymentEvent) (bool, error)
	// WithinTransaction runs fn against a repository bound to one DB
	// transaction. Ledger insert and account mutation share a transaction so
	// a partial settlement never becomes visible.
	WithinTransaction(fn func(Repository) error) error
}

// gormRepository adapts the shared account and ledger repositories to the
// billing service. It keeps the DB handle so WithinTransaction can rebind
// both to a single transaction.
type gormRepository struct {
	db            *gorm.DB
	subscriptions repository.SubscriptionRepository
	events        repository.PaymentEventRepository
}

// NewRepository creates a billing repository on top of the shared GORM
// repositories.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{
		db:            db,
		subscriptions: repository.NewSubscriptionRepository(db),
		events:        repository.NewPaymentEventRepository(db),
	}
}

func (r *gormRepository) GetSubscriptionByEmail(email string) (*models.Subscription, error) {
	return r.subscriptions.GetByEmail(email)
}

func (r *gormRepository) CreateSubscription(sub *models.Subscription) error {
	return r.subscriptions.Create(sub)
}

func (r *gormRepository) UpdateSubscription(sub *models.Subscription) error {
	return r.subscriptions.Update(sub)
}

func (r *gormRepository) DebitCredits(email string, amount int64) (int64, error) {
	return r.subscriptions.DebitCredits(email, amount)
}

func (r *gormRepository) IsEventProcessed(providerEventID string) (bool, error) {
	return r.events.IsProcessed(providerEventID)
}

func (r *gormRepository) CreateEventIfNotProcessed(event *models.PaymentEvent) (bool, error) {
	return r.events.CreateIfNotProcessed(event)
}

func (r *gormRepository) WithinTransaction(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}
