package pg

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/flexprice/collections/internal/domain/charge"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/postgres"
	"github.com/flexprice/collections/internal/types"
	"github.com/samber/lo"
)

var chargeColumns = []string{
	"id", "agency_id", "subscription_id", "cycle_id", "purpose", "status", "amount", "currency",
	"base_amount", "base_currency", "idempotency_key", "due_date", "retry_count", "next_retry_on",
	"paid_at", "created_at", "updated_at",
}

type chargeRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewChargeRepository(client postgres.IClient, logger *logger.Logger) charge.Repository {
	return &chargeRepository{client: client, logger: logger}
}

func scanCharge(row scanner) (*charge.Charge, error) {
	var c charge.Charge
	if err := row.Scan(&c.ID, &c.AgencyID, &c.SubscriptionID, &c.CycleID, &c.Purpose, &c.Status,
		&c.Amount, &c.Currency, &c.BaseAmount, &c.BaseCurrency, &c.IdempotencyKey, &c.DueDate,
		&c.RetryCount, &c.NextRetryOn, &c.PaidAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *chargeRepository) CreateIfAbsent(ctx context.Context, c *charge.Charge) (*charge.Charge, bool, error) {
	details := map[string]interface{}{
		"agency_id":       c.AgencyID,
		"idempotency_key": c.IdempotencyKey,
	}

	q := psql.Insert(types.TableNameCharges.String()).
		Columns(chargeColumns...).
		Values(c.ID, c.AgencyID, c.SubscriptionID, c.CycleID, c.Purpose, c.Status, c.Amount,
			c.Currency, c.BaseAmount, c.BaseCurrency, c.IdempotencyKey, c.DueDate, c.RetryCount,
			c.NextRetryOn, c.PaidAt, c.CreatedAt, c.UpdatedAt).
		OnConflict(entsql.ConflictColumns("agency_id", "idempotency_key"), entsql.DoNothing())

	res, err := exec(ctx, r.client, q)
	if err != nil {
		return nil, false, postgres.WrapError(err, "charge", details)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return c, true, nil
	}

	sel := psql.Select(chargeColumns...).
		From(entsql.Table(types.TableNameCharges.String())).
		Where(entsql.And(
			entsql.EQ("agency_id", c.AgencyID),
			entsql.EQ("idempotency_key", c.IdempotencyKey),
		))
	existing, err := scanCharge(queryRow(ctx, r.client, sel))
	if err != nil {
		return nil, false, postgres.WrapError(err, "charge", details)
	}
	return existing, false, nil
}

func (r *chargeRepository) Get(ctx context.Context, id string) (*charge.Charge, error) {
	q := psql.Select(chargeColumns...).
		From(entsql.Table(types.TableNameCharges.String())).
		Where(entsql.EQ("id", id))

	c, err := scanCharge(queryRow(ctx, r.client, q))
	if err != nil {
		return nil, postgres.WrapError(err, "charge", map[string]interface{}{"charge_id": id})
	}
	return c, nil
}

func (r *chargeRepository) GetByCycle(ctx context.Context, cycleID string) (*charge.Charge, error) {
	q := psql.Select(chargeColumns...).
		From(entsql.Table(types.TableNameCharges.String())).
		Where(entsql.And(
			entsql.EQ("cycle_id", cycleID),
			entsql.EQ("purpose", string(types.ChargePurposeRecurring)),
		))

	c, err := scanCharge(queryRow(ctx, r.client, q))
	if err != nil {
		return nil, postgres.WrapError(err, "charge", map[string]interface{}{"cycle_id": cycleID})
	}
	return c, nil
}

func (r *chargeRepository) List(ctx context.Context, filter *charge.ChargeFilter) ([]*charge.Charge, error) {
	if filter == nil {
		filter = &charge.ChargeFilter{}
	}

	table := types.TableNameCharges.String()
	preds := []*entsql.Predicate{}
	if len(filter.Statuses) > 0 {
		preds = append(preds, entsql.In(table+".status", lo.ToAnySlice(filter.Statuses)...))
	}
	if filter.DueOnOrBefore != nil {
		preds = append(preds, entsql.LTE(table+".due_date", *filter.DueOnOrBefore))
	}
	if filter.WithoutFiscalDocument {
		docs := types.TableNameFiscalDocuments.String()
		preds = append(preds, entsql.NotExists(
			psql.Select("1").
				From(entsql.Table(docs)).
				Where(entsql.And(
					entsql.ColumnsEQ(docs+".charge_id", table+".id"),
					entsql.EQ(docs+".status", string(types.FiscalDocumentStatusIssued)),
				)),
		))
	}

	q := psql.Select(chargeColumns...).
		From(entsql.Table(table)).
		OrderBy(table+".due_date", table+".id").
		Limit(filter.GetLimit()).
		Offset(filter.GetOffset())
	if len(preds) > 0 {
		q = q.Where(entsql.And(preds...))
	}

	charges, err := queryAll(ctx, r.client, q, scanCharge)
	if err != nil {
		return nil, postgres.WrapError(err, "charge", map[string]interface{}{"statuses": filter.Statuses})
	}
	return charges, nil
}

func (r *chargeRepository) Update(ctx context.Context, c *charge.Charge) error {
	c.UpdatedAt = time.Now().UTC()

	q := psql.Update(types.TableNameCharges.String()).
		Set("status", c.Status).
		Set("retry_count", c.RetryCount).
		Set("next_retry_on", c.NextRetryOn).
		Set("paid_at", c.PaidAt).
		Set("updated_at", c.UpdatedAt).
		Where(entsql.EQ("id", c.ID))

	res, err := exec(ctx, r.client, q)
	if err != nil {
		return postgres.WrapError(err, "charge", map[string]interface{}{"charge_id": c.ID})
	}
	return affectedOne(res, "charge", c.ID)
}
