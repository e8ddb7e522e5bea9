package types

import (
	"fmt"

	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/samber/lo"
)

type FiscalDocumentStatus string

const (
	FiscalDocumentStatusPending FiscalDocumentStatus = "PENDING"
	FiscalDocumentStatusIssued  FiscalDocumentStatus = "ISSUED"
	FiscalDocumentStatusFailed  FiscalDocumentStatus = "FAILED"
)

type FiscalDocumentType string

const (
	FiscalDocumentTypeInvoiceA    FiscalDocumentType = "INVOICE_A"
	FiscalDocumentTypeInvoiceB    FiscalDocumentType = "INVOICE_B"
	FiscalDocumentTypeInvoiceC    FiscalDocumentType = "INVOICE_C"
	FiscalDocumentTypeCreditNoteB FiscalDocumentType = "CREDIT_NOTE_B"
)

// fiscalDocumentCodes are the tax authority voucher codes of each document type
var fiscalDocumentCodes = map[FiscalDocumentType]int{
	FiscalDocumentTypeInvoiceA:    1,
	FiscalDocumentTypeInvoiceB:    6,
	FiscalDocumentTypeInvoiceC:    11,
	FiscalDocumentTypeCreditNoteB: 8,
}

func (t FiscalDocumentType) Validate() error {
	if _, ok := fiscalDocumentCodes[t]; ok {
		return nil
	}
	allowed := lo.Keys(fiscalDocumentCodes)
	return ierr.NewError(fmt.Sprintf("invalid fiscal document type %q", t)).
		WithHintf("Fiscal document type must be one of %v", allowed).
		Mark(ierr.ErrValidation)
}

// Code returns the tax authority voucher code, 0 when unknown.
func (t FiscalDocumentType) Code() int {
	return fiscalDocumentCodes[t]
}
