package pg

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/flexprice/collections/internal/domain/fiscal"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/postgres"
	"github.com/flexprice/collections/internal/types"
)

var fiscalDocumentColumns = []string{
	"id", "agency_id", "charge_id", "document_type", "status", "point_of_sale", "document_number",
	"external_reference", "cae", "cae_due_date", "amount", "currency", "payload", "error_message",
	"retry_count", "issued_at", "created_at", "updated_at",
}

type fiscalDocumentRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewFiscalDocumentRepository(client postgres.IClient, logger *logger.Logger) fiscal.Repository {
	return &fiscalDocumentRepository{client: client, logger: logger}
}

func scanFiscalDocument(row scanner) (*fiscal.Document, error) {
	var (
		d       fiscal.Document
		payload []byte
	)
	if err := row.Scan(&d.ID, &d.AgencyID, &d.ChargeID, &d.DocumentType, &d.Status, &d.PointOfSale,
		&d.DocumentNumber, &d.ExternalReference, &d.CAE, &d.CAEDueDate, &d.Amount, &d.Currency,
		&payload, &d.ErrorMessage, &d.RetryCount, &d.IssuedAt, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	if err := fromJSON(payload, &d.Payload); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *fiscalDocumentRepository) CreateIfAbsent(ctx context.Context, d *fiscal.Document) (*fiscal.Document, bool, error) {
	payload, err := toJSON(d.Payload)
	if err != nil {
		return nil, false, err
	}

	q := psql.Insert(types.TableNameFiscalDocuments.String()).
		Columns(fiscalDocumentColumns...).
		Values(d.ID, d.AgencyID, d.ChargeID, d.DocumentType, d.Status, d.PointOfSale, d.DocumentNumber,
			d.ExternalReference, d.CAE, d.CAEDueDate, d.Amount, d.Currency, payload, d.ErrorMessage,
			d.RetryCount, d.IssuedAt, d.CreatedAt, d.UpdatedAt).
		OnConflict(entsql.ConflictColumns("charge_id", "document_type"), entsql.DoNothing())

	res, err := exec(ctx, r.client, q)
	if err != nil {
		return nil, false, postgres.WrapError(err, "fiscal document", map[string]interface{}{
			"charge_id":     d.ChargeID,
			"document_type": d.DocumentType,
		})
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return d, true, nil
	}

	existing, err := r.GetByCharge(ctx, d.ChargeID, d.DocumentType)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *fiscalDocumentRepository) GetByCharge(ctx context.Context, chargeID string, documentType types.FiscalDocumentType) (*fiscal.Document, error) {
	return r.getByCharge(ctx, chargeID, documentType, false)
}

func (r *fiscalDocumentRepository) GetByChargeForUpdate(ctx context.Context, chargeID string, documentType types.FiscalDocumentType) (*fiscal.Document, error) {
	return r.getByCharge(ctx, chargeID, documentType, true)
}

func (r *fiscalDocumentRepository) getByCharge(ctx context.Context, chargeID string, documentType types.FiscalDocumentType, forUpdate bool) (*fiscal.Document, error) {
	q := psql.Select(fiscalDocumentColumns...).
		From(entsql.Table(types.TableNameFiscalDocuments.String())).
		Where(entsql.And(
			entsql.EQ("charge_id", chargeID),
			entsql.EQ("document_type", string(documentType)),
		))
	if forUpdate {
		q = q.ForUpdate()
	}

	d, err := scanFiscalDocument(queryRow(ctx, r.client, q))
	if err != nil {
		return nil, postgres.WrapError(err, "fiscal document", map[string]interface{}{
			"charge_id":     chargeID,
			"document_type": documentType,
		})
	}
	return d, nil
}

func (r *fiscalDocumentRepository) Update(ctx context.Context, d *fiscal.Document) error {
	payload, err := toJSON(d.Payload)
	if err != nil {
		return err
	}
	d.UpdatedAt = time.Now().UTC()

	q := psql.Update(types.TableNameFiscalDocuments.String()).
		Set("status", d.Status).
		Set("point_of_sale", d.PointOfSale).
		Set("document_number", d.DocumentNumber).
		Set("external_reference", d.ExternalReference).
		Set("cae", d.CAE).
		Set("cae_due_date", d.CAEDueDate).
		Set("payload", payload).
		Set("error_message", d.ErrorMessage).
		Set("retry_count", d.RetryCount).
		Set("issued_at", d.IssuedAt).
		Set("updated_at", d.UpdatedAt).
		Where(entsql.EQ("id", d.ID))

	res, err := exec(ctx, r.client, q)
	if err != nil {
		return postgres.WrapError(err, "fiscal document", map[string]interface{}{"fiscal_document_id": d.ID})
	}
	return affectedOne(res, "fiscal document", d.ID)
}
