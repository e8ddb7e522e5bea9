package charge

import (
	"time"

	"github.com/flexprice/collections/internal/types"
	"github.com/shopspring/decimal"
)

// Charge is the amount due for a billing cycle. At most one recurring charge exists
// per cycle and its idempotency key is globally unique.
type Charge struct {
	ID             string              `json:"id"`
	AgencyID       string              `json:"agency_id"`
	SubscriptionID string              `json:"subscription_id"`
	CycleID        *string             `json:"cycle_id,omitempty"`
	Purpose        types.ChargePurpose `json:"purpose"`
	Status         types.ChargeStatus  `json:"status"`
	// Amount is in the local currency, the currency the agency is debited in
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	BaseAmount     decimal.Decimal `json:"base_amount"`
	BaseCurrency   string          `json:"base_currency"`
	IdempotencyKey string          `json:"idempotency_key"`
	DueDate        types.Date      `json:"due_date"`
	// RetryCount is the number of failed presentments after the first
	RetryCount  int         `json:"retry_count"`
	NextRetryOn *types.Date `json:"next_retry_on,omitempty"`
	PaidAt      *time.Time  `json:"paid_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (c *Charge) IsPaid() bool {
	return c.Status == types.ChargeStatusPaid
}

// ChargeFilter selects charges for batch presentment and fiscal autorun.
type ChargeFilter struct {
	*types.QueryFilter
	Statuses []types.ChargeStatus `json:"statuses,omitempty"`
	// DueOnOrBefore limits charges to those due by the given date
	DueOnOrBefore *types.Date `json:"due_on_or_before,omitempty"`
	// WithoutFiscalDocument limits charges to those with no issued fiscal document
	WithoutFiscalDocument bool `json:"without_fiscal_document,omitempty"`
}
