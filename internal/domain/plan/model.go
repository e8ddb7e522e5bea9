package plan

import (
	"time"

	"github.com/flexprice/collections/internal/types"
	"github.com/shopspring/decimal"
)

// PlanPrice is the catalog price of a plan key, in the billing base currency.
type PlanPrice struct {
	PlanKey string `json:"plan_key"`
	// BasePrice covers up to IncludedUsers billing users
	BasePrice      decimal.Decimal `json:"base_price"`
	IncludedUsers  int             `json:"included_users"`
	ExtraUserPrice decimal.Decimal `json:"extra_user_price"`
	Currency       string          `json:"currency"`
}

// ExtraUsers returns how many billing users are charged on top of the base price.
func (p *PlanPrice) ExtraUsers(billingUsers int) int {
	if p.IncludedUsers <= 0 {
		return 0
	}
	return max(billingUsers-p.IncludedUsers, 0)
}

// Adjustment is an add-on or a discount applied to a subscription for a time window.
type Adjustment struct {
	ID             string               `json:"id"`
	SubscriptionID string               `json:"subscription_id"`
	Code           string               `json:"code"`
	Description    string               `json:"description"`
	Kind           types.AdjustmentKind `json:"kind"`
	// Amount is used by add-ons, in the base currency
	Amount decimal.Decimal `json:"amount"`
	// Percent is used by discounts, 0-100
	Percent   decimal.Decimal `json:"percent"`
	ValidFrom *types.Date     `json:"valid_from,omitempty"`
	ValidTo   *types.Date     `json:"valid_to,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// IsActiveOn reports whether the adjustment applies to a cycle dated d.
func (a *Adjustment) IsActiveOn(d types.Date) bool {
	if a.ValidFrom != nil && d.Before(*a.ValidFrom) {
		return false
	}
	if a.ValidTo != nil && d.After(*a.ValidTo) {
		return false
	}
	return true
}
