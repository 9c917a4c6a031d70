package billing

import "errors"

var (
	// ErrDuplicateEvent means the ledger already holds a row for the
	// provider event id. Not a failure; the delivery is acknowledged as an
	// idempotent no-op.
	ErrDuplicateEvent = errors.New("payment event already processed")

	// ErrInvalidPlan marks a plan value outside the recognized set. There
	// is no default tier; callers fail closed.
	ErrInvalidPlan = errors.New("unrecognized plan")

	// ErrInsufficientCredits means the balance does not cover the debit.
	// The balance is left untouched.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrSignatureInvalid means the webhook payload could not be
	// authenticated and must not be processed.
	ErrSignatureInvalid = errors.New("webhook signature verification failed")
)
