package fiscal

import (
	"time"

	"github.com/flexprice/collections/internal/types"
	"github.com/shopspring/decimal"
)

// Document is a tax-authority document issued for a paid charge. At most one
// exists per (charge_id, document_type).
type Document struct {
	ID                string                     `json:"id"`
	AgencyID          string                     `json:"agency_id"`
	ChargeID          string                     `json:"charge_id"`
	DocumentType      types.FiscalDocumentType   `json:"document_type"`
	Status            types.FiscalDocumentStatus `json:"status"`
	PointOfSale       int                        `json:"point_of_sale"`
	DocumentNumber    *int64                     `json:"document_number,omitempty"`
	ExternalReference string                     `json:"external_reference,omitempty"`
	CAE               string                     `json:"cae,omitempty"`
	CAEDueDate        *types.Date                `json:"cae_due_date,omitempty"`
	Amount            decimal.Decimal            `json:"amount"`
	Currency          string                     `json:"currency"`
	// Payload is the request last sent to the issuer
	Payload      map[string]interface{} `json:"payload,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	RetryCount   int                    `json:"retry_count"`
	IssuedAt     *time.Time             `json:"issued_at,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

func (d *Document) IsIssued() bool {
	return d.Status == types.FiscalDocumentStatusIssued
}
