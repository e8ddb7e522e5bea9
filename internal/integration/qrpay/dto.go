package qrpay

import (
	"strings"
	"time"

	"github.com/flexprice/collections/internal/types"
	"github.com/shopspring/decimal"
)

// providerStatus values returned by the payment intent API
const (
	providerStatusPending  = "pending"
	providerStatusPaid     = "paid"
	providerStatusExpired  = "expired"
	providerStatusCanceled = "canceled"
)

// CreateIntentRequest asks the provider for a payable QR intent.
type CreateIntentRequest struct {
	// IdempotencyKey makes repeated creation return the same intent
	IdempotencyKey    string
	AgencyID          string
	ExternalReference string
	Amount            decimal.Decimal
	Currency          string
	Description       string
	ExpiresAt         time.Time
	Metadata          map[string]string
}

// PaymentIntent is the provider side view of an intent.
type PaymentIntent struct {
	Reference      string
	Status         types.FallbackIntentStatus
	ProviderStatus string
	PaymentURL     string
	QRPayload      string
	Amount         decimal.Decimal
	Currency       string
	ExpiresAt      *time.Time
	PaidAt         *time.Time
}

// intentPayload is the JSON body of the payment intent API. Amounts are in cents.
type intentPayload struct {
	ID                string            `json:"id,omitempty"`
	Status            string            `json:"status,omitempty"`
	Amount            int64             `json:"amount"`
	Currency          string            `json:"currency"`
	Description       string            `json:"description,omitempty"`
	ExternalReference string            `json:"external_reference,omitempty"`
	PaymentURL        string            `json:"payment_url,omitempty"`
	QRData            string            `json:"qr_data,omitempty"`
	ExpiresAt         *time.Time        `json:"expires_at,omitempty"`
	PaidAt            *time.Time        `json:"paid_at,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// toCents converts an amount to the smallest currency unit
func toCents(amount decimal.Decimal) int64 {
	return types.RoundMoney(amount).Shift(types.MoneyPrecision).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Shift(-types.MoneyPrecision)
}

// DeriveStatus maps a provider status to the intent status. A pending intent past
// its expiry is EXPIRED even when the provider has not caught up yet.
func DeriveStatus(providerStatus string, expiresAt *time.Time, now time.Time) types.FallbackIntentStatus {
	switch strings.ToLower(providerStatus) {
	case providerStatusPaid, "approved", "succeeded":
		return types.FallbackIntentStatusPaid
	case providerStatusExpired:
		return types.FallbackIntentStatusExpired
	case providerStatusCanceled, "cancelled", "rejected":
		return types.FallbackIntentStatusCanceled
	}
	if expiresAt != nil && !now.Before(*expiresAt) {
		return types.FallbackIntentStatusExpired
	}
	return types.FallbackIntentStatusPending
}

func (p *intentPayload) toIntent(now time.Time) *PaymentIntent {
	return &PaymentIntent{
		Reference:      p.ID,
		Status:         DeriveStatus(p.Status, p.ExpiresAt, now),
		ProviderStatus: p.Status,
		PaymentURL:     p.PaymentURL,
		QRPayload:      p.QRData,
		Amount:         fromCents(p.Amount),
		Currency:       p.Currency,
		ExpiresAt:      p.ExpiresAt,
		PaidAt:         p.PaidAt,
	}
}
