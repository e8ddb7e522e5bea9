package subscription

import (
	"time"

	"github.com/flexprice/collections/internal/types"
	"github.com/shopspring/decimal"
)

// Subscription is an agency's recurring plan. Only NextAnchorDate is written by the
// billing engine; everything else belongs to plan management.
type Subscription struct {
	ID       string                   `json:"id"`
	AgencyID string                   `json:"agency_id"`
	Status   types.SubscriptionStatus `json:"status"`
	PlanKey  string                   `json:"plan_key"`
	// AnchorDay is the day of month the subscription bills on, 1-31
	AnchorDay int    `json:"anchor_day"`
	Timezone  string `json:"timezone"`
	// BillingUsers is the number of users the plan price is computed for
	BillingUsers int `json:"billing_users"`
	// DiscountPercent is a standing discount, e.g. for opting into direct debit
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	NextAnchorDate  *types.Date     `json:"next_anchor_date,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Location returns the subscription's timezone, UTC when unset.
func (s *Subscription) Location() (*time.Location, error) {
	return types.LoadTimezone(s.Timezone)
}

// IsDueOn reports whether the subscription has a cycle due on the local date.
func (s *Subscription) IsDueOn(local types.Date) bool {
	if !s.Status.IsBillable() {
		return false
	}
	if s.NextAnchorDate == nil {
		return true
	}
	return !s.NextAnchorDate.After(local)
}

// PaymentMethod is how a subscription's charges are collected.
type PaymentMethod struct {
	ID             string                    `json:"id"`
	SubscriptionID string                    `json:"subscription_id"`
	AgencyID       string                    `json:"agency_id"`
	Type           types.PaymentMethodType   `json:"type"`
	Status         types.PaymentMethodStatus `json:"status"`
	IsDefault      bool                      `json:"is_default"`
	HolderName     string                    `json:"holder_name"`
	HolderTaxID    string                    `json:"holder_tax_id"`
	AccountLast4   string                    `json:"account_last4"`
	MandateID      *string                   `json:"mandate_id,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

func (p *PaymentMethod) IsActive() bool {
	return p.Status == types.PaymentMethodStatusActive
}
