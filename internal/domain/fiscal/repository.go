package fiscal

import (
	"context"

	"github.com/flexprice/collections/internal/types"
)

type Repository interface {
	// CreateIfAbsent inserts the document unless one exists for
	// (charge_id, document_type). It returns the stored document and whether this
	// call created it.
	CreateIfAbsent(ctx context.Context, d *Document) (*Document, bool, error)

	GetByCharge(ctx context.Context, chargeID string, documentType types.FiscalDocumentType) (*Document, error)
	// GetByChargeForUpdate locks the document row for the surrounding transaction.
	GetByChargeForUpdate(ctx context.Context, chargeID string, documentType types.FiscalDocumentType) (*Document, error)
	Update(ctx context.Context, d *Document) error
}
