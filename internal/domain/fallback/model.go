package fallback

import (
	"time"

	"github.com/flexprice/collections/internal/types"
	"github.com/shopspring/decimal"
)

// Intent is a payment intent opened with the fallback provider for a charge that
// could not be collected by direct debit.
type Intent struct {
	ID                string                     `json:"id"`
	AgencyID          string                     `json:"agency_id"`
	ChargeID          string                     `json:"charge_id"`
	AttemptID         string                     `json:"attempt_id"`
	IdempotencyKey    string                     `json:"idempotency_key"`
	Status            types.FallbackIntentStatus `json:"status"`
	Amount            decimal.Decimal            `json:"amount"`
	Currency          string                     `json:"currency"`
	ProviderReference string                     `json:"provider_reference,omitempty"`
	ProviderStatus    string                     `json:"provider_status,omitempty"`
	PaymentURL        string                     `json:"payment_url,omitempty"`
	QRPayload         string                     `json:"qr_payload,omitempty"`
	ExpiresAt         *time.Time                 `json:"expires_at,omitempty"`
	PaidAt            *time.Time                 `json:"paid_at,omitempty"`
	CreatedAt         time.Time                  `json:"created_at"`
	UpdatedAt         time.Time                  `json:"updated_at"`
}

// IntentFilter selects intents for polling.
type IntentFilter struct {
	*types.QueryFilter
	Statuses []types.FallbackIntentStatus `json:"statuses,omitempty"`
}
