package billingcycle

import (
	"time"

	"github.com/flexprice/collections/internal/types"
	"github.com/shopspring/decimal"
)

// BillingCycle is one billing occurrence of a subscription, unique per
// (subscription_id, anchor_date). The pricing snapshot is frozen at creation.
type BillingCycle struct {
	ID             string           `json:"id"`
	SubscriptionID string           `json:"subscription_id"`
	AgencyID       string           `json:"agency_id"`
	AnchorDate     types.Date       `json:"anchor_date"`
	PeriodStart    types.Date       `json:"period_start"`
	PeriodEnd      types.Date       `json:"period_end"`
	Snapshot       *PricingSnapshot `json:"snapshot"`
	CreatedAt      time.Time        `json:"created_at"`
}

// LineItem is a single priced line of a snapshot. Amounts are in the base currency
// and LocalAmount is its rounded local currency equivalent.
type LineItem struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
	LocalAmount decimal.Decimal `json:"local_amount"`
}

// PricingSnapshot is the frozen record of how a cycle's amount was derived.
type PricingSnapshot struct {
	PlanKey       string `json:"plan_key"`
	BillingUsers  int    `json:"billing_users"`
	BaseCurrency  string `json:"base_currency"`
	LocalCurrency string `json:"local_currency"`
	// BasePrice is the plan price including extra users
	BasePrice   decimal.Decimal `json:"base_price"`
	AddonsTotal decimal.Decimal `json:"addons_total"`
	// PreDiscountNet is base plus add-ons
	PreDiscountNet  decimal.Decimal `json:"pre_discount_net"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	// Subtotal is base plus add-ons minus discount, before VAT
	Subtotal   decimal.Decimal `json:"subtotal"`
	VATRate    decimal.Decimal `json:"vat_rate"`
	VATAmount  decimal.Decimal `json:"vat_amount"`
	Total      decimal.Decimal `json:"total"`
	FXRate     decimal.Decimal `json:"fx_rate"`
	FXRateDate types.Date      `json:"fx_rate_date"`
	FXSource   string          `json:"fx_source"`
	// StaleFXRate is set when no rate was effective on the cycle date and the latest
	// known rate was used instead
	StaleFXRate bool            `json:"stale_fx_rate,omitempty"`
	LocalTotal  decimal.Decimal `json:"local_total"`
	LineItems   []LineItem      `json:"line_items"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// LocalLineTotal sums the local amounts of the line items.
func (s *PricingSnapshot) LocalLineTotal() decimal.Decimal {
	total := decimal.Zero
	for _, li := range s.LineItems {
		total = total.Add(li.LocalAmount)
	}
	return total
}
