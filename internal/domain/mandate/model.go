package mandate

import (
	"time"

	"github.com/flexprice/collections/internal/types"
)

// Mandate is the bank's authorization to debit an agency's account.
type Mandate struct {
	ID              string              `json:"id"`
	AgencyID        string              `json:"agency_id"`
	SubscriptionID  string              `json:"subscription_id"`
	PaymentMethodID string              `json:"payment_method_id"`
	Status          types.MandateStatus `json:"status"`
	BankReference   string              `json:"bank_reference,omitempty"`
	RejectionReason string              `json:"rejection_reason,omitempty"`
	RejectionCode   string              `json:"rejection_code,omitempty"`
	// ActivatedAt and RevokedAt are written once, on first entry to the status
	ActivatedAt       *time.Time `json:"activated_at,omitempty"`
	RevokedAt         *time.Time `json:"revoked_at,omitempty"`
	LastStatusCheckAt *time.Time `json:"last_status_check_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// IsUsable reports whether debits may be presented against the mandate.
func (m *Mandate) IsUsable() bool {
	return m.Status == types.MandateStatusActive
}
