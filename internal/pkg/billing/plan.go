package billing

import (
	"fmt"
	"strings"

	"github.com/CodeLensApp/CodeLens/app/models"
)

// CreditGrant is what a recognized plan is worth at settlement time. It has
// no lifecycle of its own; it is recomputed from the plan on every event.
type CreditGrant struct {
	Credits      int64
	DurationDays int
}

const (
	monthlyCredits      = 50
	monthlyDurationDays = 30
	annualCredits       = 600
	annualDurationDays  = 365
)

// GrantForPlan maps a checkout plan to its credit grant. Unrecognized values
// fail with ErrInvalidPlan; there is deliberately no default tier.
func GrantForPlan(plan string) (CreditGrant, error) {
	switch normalizePlan(plan) {
	case models.PlanMonthly:
		return CreditGrant{Credits: monthlyCredits, DurationDays: monthlyDurationDays}, nil
	case models.PlanAnnual:
		return CreditGrant{Credits: annualCredits, DurationDays: annualDurationDays}, nil
	default:
		return CreditGrant{}, fmt.Errorf("%w: %q", ErrInvalidPlan, plan)
	}
}

func normalizePlan(plan string) string {
	return strings.ToLower(strings.TrimSpace(plan))
}
