package billing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/CodeLensApp/CodeLens/app/models"
	"gorm.io/gorm"
)

// fakeRepository keeps accounts and the event ledger in maps. Transactions
// snapshot both so a failing settlement rolls the ledger write back, the same
// all-or-nothing behavior the GORM transaction gives the real repository.
type fakeRepository struct {
	subs   map[string]*models.Subscription
	events map[string]*models.PaymentEvent
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		subs:   make(map[string]*models.Subscription),
		events: make(map[string]*models.PaymentEvent),
	}
}

func (f *fakeRepository) GetSubscriptionByEmail(email string) (*models.Subscription, error) {
	sub, ok := f.subs[strings.TrimSpace(email)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *sub
	return &cp, nil
}

func (f *fakeRepository) CreateSubscription(sub *models.Subscription) error {
	cp := *sub
	f.subs[sub.Email] = &cp
	return nil
}

func (f *fakeRepository) UpdateSubscription(sub *models.Subscription) error {
	cp := *sub
	f.subs[sub.Email] = &cp
	return nil
}

func (f *fakeRepository) DebitCredits(email string, amount int64) (int64, error) {
	sub, ok := f.subs[strings.TrimSpace(email)]
	if !ok || sub.Credits < amount {
		return 0, nil
	}
	sub.Credits -= amount
	return 1, nil
}

func (f *fakeRepository) IsEventProcessed(providerEventID string) (bool, error) {
	_, ok := f.events[providerEventID]
	return ok, nil
}

func (f *fakeRepository) CreateEventIfNotProcessed(event *models.PaymentEvent) (bool, error) {
	if _, ok := f.events[event.ProviderEventID]; ok {
		return false, nil
	}
	cp := *event
	f.events[event.ProviderEventID] = &cp
	return true, nil
}

func (f *fakeRepository) WithinTransaction(fn func(Repository) error) error {
	subsSnapshot := make(map[string]*models.Subscription, len(f.subs))
	for k, v := range f.subs {
		cp := *v
		subsSnapshot[k] = &cp
	}
	eventsSnapshot := make(map[string]*models.PaymentEvent, len(f.events))
	for k, v := range f.events {
		cp := *v
		eventsSnapshot[k] = &cp
	}
	if err := fn(f); err != nil {
		f.subs = subsSnapshot
		f.events = eventsSnapshot
		return err
	}
	return nil
}

func TestSettleFreshAccount(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	sub, err := svc.Settle(context.Background(), SettlementInput{
		Email:                "a@x.com",
		Plan:                 "annual",
		StripeCustomerID:     "cus_1",
		StripeSubscriptionID: "sub_1",
		Now:                  now,
	})
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if sub.Credits != 600 {
		t.Fatalf("credits = %d, want 600", sub.Credits)
	}
	wantEnd := now.AddDate(0, 0, 365)
	if sub.SubscriptionEndsAt == nil || !sub.SubscriptionEndsAt.Equal(wantEnd) {
		t.Fatalf("subscription_ends_at = %v, want %v", sub.SubscriptionEndsAt, wantEnd)
	}
	if sub.StripeCustomerID != "cus_1" || sub.StripeSubscriptionID != "sub_1" {
		t.Fatalf("provider ids not stored: %+v", sub)
	}
}

func TestSettleExistingAccountStacksCredits(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	earlier := now.AddDate(0, 0, -20)
	earlierEnd := earlier.AddDate(0, 0, 30)
	repo.subs["a@x.com"] = &models.Subscription{
		Email:              "a@x.com",
		Credits:            20,
		SubscribedAt:       &earlier,
		SubscriptionEndsAt: &earlierEnd,
	}

	sub, err := svc.Settle(context.Background(), SettlementInput{Email: "a@x.com", Plan: "monthly", Now: now})
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if sub.Credits != 70 {
		t.Fatalf("credits = %d, want 70 (additive stacking)", sub.Credits)
	}
	wantEnd := now.AddDate(0, 0, 30)
	if !sub.SubscriptionEndsAt.Equal(wantEnd) {
		t.Fatalf("subscription_ends_at = %v, want reset to %v", sub.SubscriptionEndsAt, wantEnd)
	}
}

func TestProcessCheckoutCompletedIsIdempotent(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ev := CheckoutCompletedEvent{
		EventID:    "evt_1",
		EventType:  EventTypeCheckoutCompleted,
		Email:      "a@x.com",
		Plan:       "annual",
		OccurredAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	sub, duplicate, err := svc.ProcessCheckoutCompleted(context.Background(), ev)
	if err != nil || duplicate {
		t.Fatalf("first delivery: sub=%v duplicate=%v err=%v", sub, duplicate, err)
	}
	if sub.Credits != 600 {
		t.Fatalf("credits after first delivery = %d, want 600", sub.Credits)
	}

	_, duplicate, err = svc.ProcessCheckoutCompleted(context.Background(), ev)
	if err != nil {
		t.Fatalf("second delivery errored: %v", err)
	}
	if !duplicate {
		t.Fatalf("second delivery not reported as duplicate")
	}
	if got := repo.subs["a@x.com"].Credits; got != 600 {
		t.Fatalf("credits after duplicate delivery = %d, want 600 exactly once", got)
	}
	if len(repo.events) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(repo.events))
	}
}

func TestProcessCheckoutCompletedInvalidPlanRollsBack(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	_, _, err := svc.ProcessCheckoutCompleted(context.Background(), CheckoutCompletedEvent{
		EventID: "evt_2",
		Email:   "a@x.com",
		Plan:    "platinum",
	})
	if !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("err = %v, want ErrInvalidPlan", err)
	}
	if len(repo.events) != 0 {
		t.Fatalf("event was marked processed despite failed settlement")
	}
	if len(repo.subs) != 0 {
		t.Fatalf("account was created despite failed settlement")
	}
}

func TestDebitInsufficientCreditsLeavesBalance(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	repo.subs["b@x.com"] = &models.Subscription{Email: "b@x.com", Credits: 0}

	err := svc.Debit(context.Background(), "b@x.com", 1)
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}
	if got := repo.subs["b@x.com"].Credits; got != 0 {
		t.Fatalf("credits = %d, want 0 untouched", got)
	}
}

func TestDebitDecrementsOnce(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	repo.subs["c@x.com"] = &models.Subscription{Email: "c@x.com", Credits: 2}

	if err := svc.Debit(context.Background(), "c@x.com", 1); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if got := repo.subs["c@x.com"].Credits; got != 1 {
		t.Fatalf("credits = %d, want 1", got)
	}
}

func TestDebitMissingAccount(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	if err := svc.Debit(context.Background(), "nobody@x.com", 1); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}
}
