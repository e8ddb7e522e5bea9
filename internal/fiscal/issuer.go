package fiscal

import (
	"context"
	"time"

	"github.com/flexprice/collections/internal/config"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/types"
	"github.com/shopspring/decimal"
)

// IssueRequest is one fiscal document to authorize with the tax authority.
type IssueRequest struct {
	// IdempotencyKey is stable across retries of the same document
	IdempotencyKey string
	AgencyID       string
	ChargeID       string
	DocumentType   types.FiscalDocumentType
	PointOfSale    int
	IssueDate      types.Date
	Amount         decimal.Decimal
	NetAmount      decimal.Decimal
	VATAmount      decimal.Decimal
	Currency       string
	FXRate         decimal.Decimal
	HolderName     string
	HolderTaxID    string
	Concept        string
}

// IssueResult is the authority's authorization of a document.
type IssueResult struct {
	ExternalReference string
	DocumentNumber    int64
	CAE               string
	CAEDueDate        types.Date
	IssuedAt          time.Time
	Raw               map[string]interface{}
}

// Issuer authorizes fiscal documents.
type Issuer interface {
	Issue(ctx context.Context, req *IssueRequest) (*IssueResult, error)
}

// NewIssuer picks the issuer from fiscal.mode.
func NewIssuer(cfg *config.Configuration, log *logger.Logger) Issuer {
	if cfg.Fiscal.Mode == "http" {
		return NewHTTPIssuer(cfg.Fiscal, log)
	}
	return NewMockIssuer()
}
