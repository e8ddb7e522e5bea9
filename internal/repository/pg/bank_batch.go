package pg

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/flexprice/collections/internal/domain/bankbatch"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/postgres"
	"github.com/flexprice/collections/internal/types"
	"github.com/lib/pq"
)

var bankBatchColumns = []string{
	"id", "adapter", "direction", "file_name", "business_date", "record_count", "amount_total",
	"checksum", "storage_key", "status", "mismatches", "warnings", "created_at", "updated_at",
}

var bankResponseRowColumns = []string{
	"id", "batch_id", "attempt_id", "line_hash", "external_reference", "raw_code", "raw_message",
	"status", "reason", "amount", "settled_at", "trace_id", "operation_id", "created_at",
}

type bankBatchRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewBankBatchRepository(client postgres.IClient, logger *logger.Logger) bankbatch.Repository {
	return &bankBatchRepository{client: client, logger: logger}
}

func (r *bankBatchRepository) Create(ctx context.Context, b *bankbatch.Batch) error {
	q := psql.Insert(types.TableNameBankBatches.String()).
		Columns(bankBatchColumns...).
		Values(b.ID, b.Adapter, b.Direction, b.FileName, b.BusinessDate, b.RecordCount, b.AmountTotal,
			b.Checksum, b.StorageKey, b.Status, pq.Array(b.Mismatches), pq.Array(b.Warnings),
			b.CreatedAt, b.UpdatedAt)

	if _, err := exec(ctx, r.client, q); err != nil {
		return postgres.WrapError(err, "bank batch", map[string]interface{}{
			"file_name": b.FileName,
			"direction": b.Direction,
		})
	}
	return nil
}

func (r *bankBatchRepository) Get(ctx context.Context, id string) (*bankbatch.Batch, error) {
	q := psql.Select(bankBatchColumns...).
		From(entsql.Table(types.TableNameBankBatches.String())).
		Where(entsql.EQ("id", id))

	var b bankbatch.Batch
	err := queryRow(ctx, r.client, q).Scan(&b.ID, &b.Adapter, &b.Direction, &b.FileName,
		&b.BusinessDate, &b.RecordCount, &b.AmountTotal, &b.Checksum, &b.StorageKey, &b.Status,
		pq.Array(&b.Mismatches), pq.Array(&b.Warnings), &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, postgres.WrapError(err, "bank batch", map[string]interface{}{"batch_id": id})
	}
	return &b, nil
}

func (r *bankBatchRepository) Update(ctx context.Context, b *bankbatch.Batch) error {
	b.UpdatedAt = time.Now().UTC()

	q := psql.Update(types.TableNameBankBatches.String()).
		Set("status", b.Status).
		Set("storage_key", b.StorageKey).
		Set("mismatches", pq.Array(b.Mismatches)).
		Set("warnings", pq.Array(b.Warnings)).
		Set("updated_at", b.UpdatedAt).
		Where(entsql.EQ("id", b.ID))

	res, err := exec(ctx, r.client, q)
	if err != nil {
		return postgres.WrapError(err, "bank batch", map[string]interface{}{"batch_id": b.ID})
	}
	return affectedOne(res, "bank batch", b.ID)
}

func (r *bankBatchRepository) CountByBusinessDate(ctx context.Context, direction types.BankBatchDirection, businessDate types.Date) (int, error) {
	q := psql.Select(entsql.Count("*")).
		From(entsql.Table(types.TableNameBankBatches.String())).
		Where(entsql.And(
			entsql.EQ("direction", direction),
			entsql.EQ("business_date", businessDate),
		))

	var n int
	if err := queryRow(ctx, r.client, q).Scan(&n); err != nil {
		return 0, postgres.WrapError(err, "bank batch", map[string]interface{}{
			"direction":     direction,
			"business_date": businessDate.String(),
		})
	}
	return n, nil
}

func (r *bankBatchRepository) CreateResponseRowIfAbsent(ctx context.Context, row *bankbatch.ResponseRow) (bool, error) {
	q := psql.Insert(types.TableNameBankResponseRows.String()).
		Columns(bankResponseRowColumns...).
		Values(row.ID, row.BatchID, row.AttemptID, row.LineHash, row.ExternalReference, row.RawCode,
			row.RawMessage, row.Status, row.Reason, row.Amount, row.SettledAt, row.TraceID,
			row.OperationID, row.CreatedAt).
		OnConflict(entsql.ConflictColumns("attempt_id", "line_hash"), entsql.DoNothing())

	res, err := exec(ctx, r.client, q)
	if err != nil {
		return false, postgres.WrapError(err, "bank response row", map[string]interface{}{
			"attempt_id": row.AttemptID,
			"line_hash":  row.LineHash,
		})
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, postgres.WrapError(err, "bank response row", nil)
	}
	return n == 1, nil
}
