package types

// BankResultStatus is the internal taxonomy every bank result code maps to.
type BankResultStatus string

const (
	BankResultStatusPaid     BankResultStatus = "PAID"
	BankResultStatusRejected BankResultStatus = "REJECTED"
	BankResultStatusError    BankResultStatus = "ERROR"
	BankResultStatusUnknown  BankResultStatus = "UNKNOWN"
)

// BankReasonCode details why a debit was not collected.
type BankReasonCode string

const (
	BankReasonNone              BankReasonCode = ""
	BankReasonInsufficientFunds BankReasonCode = "INSUFFICIENT_FUNDS"
	BankReasonInvalidAccount    BankReasonCode = "INVALID_ACCOUNT"
	// BankReasonMandateInvalid covers missing, invalid and inactive mandates
	BankReasonMandateInvalid BankReasonCode = "MANDATE_INVALID"
	BankReasonAccountClosed  BankReasonCode = "ACCOUNT_CLOSED"
	BankReasonFormatError    BankReasonCode = "FORMAT_ERROR"
	BankReasonDuplicate      BankReasonCode = "DUPLICATE"
)

// IsRetryable reports whether another direct debit attempt may succeed.
func (r BankReasonCode) IsRetryable() bool {
	switch r {
	case BankReasonInvalidAccount, BankReasonMandateInvalid, BankReasonAccountClosed, BankReasonDuplicate:
		return false
	default:
		return true
	}
}

// InvalidatesMandate reports whether the reason means the mandate can no longer be used.
func (r BankReasonCode) InvalidatesMandate() bool {
	return r == BankReasonMandateInvalid || r == BankReasonAccountClosed
}

type BankBatchDirection string

const (
	BankBatchDirectionOutbound BankBatchDirection = "OUTBOUND"
	BankBatchDirectionInbound  BankBatchDirection = "INBOUND"
)

type BankBatchStatus string

const (
	BankBatchStatusGenerated  BankBatchStatus = "GENERATED"
	BankBatchStatusReconciled BankBatchStatus = "RECONCILED"
	// BankBatchStatusNeedsReview has control total mismatches or unmatched rows
	BankBatchStatusNeedsReview BankBatchStatus = "NEEDS_REVIEW"
)
