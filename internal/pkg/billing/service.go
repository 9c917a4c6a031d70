package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CodeLensApp/CodeLens/app/models"
	"gorm.io/gorm"
)

// Service implements the settlement state machine, the processed-event ledger
// and the credit debit path on top of an injected repository.
type Service struct {
	repo Repository
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// ProcessCheckoutCompleted applies a verified checkout-completion event
// exactly once. The ledger insert and the account settlement share one
// transaction, so two concurrent deliveries of the same event id serialize on
// the ledger's unique index: one settles, the other reports duplicate=true.
func (s *Service) ProcessCheckoutCompleted(ctx context.Context, ev CheckoutCompletedEvent) (*models.Subscription, bool, error) {
	_ = ctx
	eventID := strings.TrimSpace(ev.EventID)
	if eventID == "" {
		return nil, false, errors.New("provider event id is required")
	}

	// Fast path: retried deliveries of an already-settled event skip the
	// transaction entirely.
	processed, err := s.repo.IsEventProcessed(eventID)
	if err != nil {
		return nil, false, fmt.Errorf("ledger lookup: %w", err)
	}
	if processed {
		return nil, true, nil
	}

	now := ev.OccurredAt
	if now.IsZero() {
		now = time.Now()
	}

	var settled *models.Subscription
	err = s.repo.WithinTransaction(func(tx Repository) error {
		created, err := tx.CreateEventIfNotProcessed(&models.PaymentEvent{
			ProviderEventID: eventID,
			EventType:       ev.EventType,
			Email:           strings.TrimSpace(ev.Email),
			Plan:            normalizePlan(ev.Plan),
			OccurredAt:      now,
			PayloadJSON:     ev.RawPayload,
		})
		if err != nil {
			return fmt.Errorf("ledger write: %w", err)
		}
		if !created {
			return ErrDuplicateEvent
		}

		settled, err = settle(tx, SettlementInput{
			Email:                ev.Email,
			Plan:                 ev.Plan,
			StripeCustomerID:     ev.StripeCustomerID,
			StripeSubscriptionID: ev.StripeSubscriptionID,
			Now:                  now,
		})
		return err
	})
	if errors.Is(err, ErrDuplicateEvent) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return settled, false, nil
}

// Settle runs the account transition for a verified payment outside of
// webhook processing (ledger handling is the caller's concern).
func (s *Service) Settle(ctx context.Context, in SettlementInput) (*models.Subscription, error) {
	_ = ctx
	return settle(s.repo, in)
}

// settle decides new-vs-existing account and applies the credit grant.
// Existing accounts stack credits additively; the subscription end is always
// reset to now + grant duration, never extended from the prior expiry.
func settle(repo Repository, in SettlementInput) (*models.Subscription, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return nil, errors.New("email is required")
	}
	grant, err := GrantForPlan(in.Plan)
	if err != nil {
		return nil, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	endsAt := now.AddDate(0, 0, grant.DurationDays)

	existing, err := repo.GetSubscriptionByEmail(email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("account lookup: %w", err)
		}
		sub := &models.Subscription{
			Email:                email,
			Credits:              grant.Credits,
			PreferredLanguage:    "python",
			SubscribedAt:         &now,
			SubscriptionEndsAt:   &endsAt,
			StripeCustomerID:     strings.TrimSpace(in.StripeCustomerID),
			StripeSubscriptionID: strings.TrimSpace(in.StripeSubscriptionID),
		}
		if err := repo.CreateSubscription(sub); err != nil {
			return nil, fmt.Errorf("account create: %w", err)
		}
		return sub, nil
	}

	existing.Credits += grant.Credits
	existing.SubscribedAt = &now
	existing.SubscriptionEndsAt = &endsAt
	if id := strings.TrimSpace(in.StripeCustomerID); id != "" {
		existing.StripeCustomerID = id
	}
	if id := strings.TrimSpace(in.StripeSubscriptionID); id != "" {
		existing.StripeSubscriptionID = id
	}
	if err := repo.UpdateSubscription(existing); err != nil {
		return nil, fmt.Errorf("account update: %w", err)
	}
	return existing, nil
}

// Debit consumes credits ahead of a gated operation. The repository performs
// a single conditional write; zero affected rows means the balance did not
// cover the amount (or no account exists) and nothing was changed.
func (s *Service) Debit(ctx context.Context, email string, amount int64) error {
	_ = ctx
	if amount <= 0 {
		amount = 1
	}
	rows, err := s.repo.DebitCredits(email, amount)
	if err != nil {
		return fmt.Errorf("debit: %w", err)
	}
	if rows == 0 {
		return ErrInsufficientCredits
	}
	return nil
}

// GetAccount returns the credit account for an email, or nil when none
// exists yet.
func (s *Service) GetAccount(ctx context.Context, email string) (*models.Subscription, error) {
	_ = ctx
	sub, err := s.repo.GetSubscriptionByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}
