package attempt

import (
	"time"

	"github.com/flexprice/collections/internal/types"
	"github.com/shopspring/decimal"
)

// Attempt is one try to collect a charge through a channel. ExternalReference is
// what the bank echoes back in its response file.
type Attempt struct {
	ID                string                  `json:"id"`
	ChargeID          string                  `json:"charge_id"`
	AgencyID          string                  `json:"agency_id"`
	AttemptNo         int                     `json:"attempt_no"`
	Channel           types.CollectionChannel `json:"channel"`
	Status            types.AttemptStatus     `json:"status"`
	Amount            decimal.Decimal         `json:"amount"`
	Currency          string                  `json:"currency"`
	ExternalReference string                  `json:"external_reference"`
	PaymentMethodID   string                  `json:"payment_method_id"`
	ScheduledOn       types.Date              `json:"scheduled_on"`
	BatchID           *string                 `json:"batch_id,omitempty"`
	ReasonCode        types.BankReasonCode    `json:"reason_code,omitempty"`
	ReasonMessage     string                  `json:"reason_message,omitempty"`
	PresentedAt       *time.Time              `json:"presented_at,omitempty"`
	SettledAt         *time.Time              `json:"settled_at,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

// AttemptFilter selects attempts for presentment.
type AttemptFilter struct {
	*types.QueryFilter
	Channel             types.CollectionChannel `json:"channel,omitempty"`
	Statuses            []types.AttemptStatus   `json:"statuses,omitempty"`
	ScheduledOnOrBefore *types.Date             `json:"scheduled_on_or_before,omitempty"`
}
