package bankbatch

import (
	"time"

	"github.com/flexprice/collections/internal/types"
	"github.com/shopspring/decimal"
)

// Batch is one bank file, either sent (outbound) or received (inbound).
type Batch struct {
	ID           string                   `json:"id"`
	Adapter      string                   `json:"adapter"`
	Direction    types.BankBatchDirection `json:"direction"`
	FileName     string                   `json:"file_name"`
	BusinessDate types.Date               `json:"business_date"`
	RecordCount  int                      `json:"record_count"`
	AmountTotal  decimal.Decimal          `json:"amount_total"`
	Checksum     string                   `json:"checksum"`
	StorageKey   string                   `json:"storage_key,omitempty"`
	Status       types.BankBatchStatus    `json:"status"`
	// Mismatches lists control total validation failures, empty when the file
	// validated
	Mismatches []string `json:"mismatches,omitempty"`
	// Warnings lists skipped or unmatched lines of an inbound file
	Warnings  []string  `json:"warnings,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResponseRow records one applied inbound result. (attempt_id, line_hash) is unique so
// reprocessing a file never applies a line twice.
type ResponseRow struct {
	ID                string                 `json:"id"`
	BatchID           string                 `json:"batch_id"`
	AttemptID         string                 `json:"attempt_id"`
	LineHash          string                 `json:"line_hash"`
	ExternalReference string                 `json:"external_reference"`
	RawCode           string                 `json:"raw_code"`
	RawMessage        string                 `json:"raw_message"`
	Status            types.BankResultStatus `json:"status"`
	Reason            types.BankReasonCode   `json:"reason,omitempty"`
	Amount            decimal.Decimal        `json:"amount"`
	SettledAt         *time.Time             `json:"settled_at,omitempty"`
	TraceID           string                 `json:"trace_id,omitempty"`
	OperationID       string                 `json:"operation_id,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
}
