package pg

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/flexprice/collections/internal/domain/attempt"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/postgres"
	"github.com/flexprice/collections/internal/types"
	"github.com/samber/lo"
)

var attemptColumns = []string{
	"id", "charge_id", "agency_id", "attempt_no", "channel", "status", "amount", "currency",
	"external_reference", "payment_method_id", "scheduled_on", "batch_id", "reason_code",
	"reason_message", "presented_at", "settled_at", "created_at", "updated_at",
}

type attemptRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewAttemptRepository(client postgres.IClient, logger *logger.Logger) attempt.Repository {
	return &attemptRepository{client: client, logger: logger}
}

func scanAttempt(row scanner) (*attempt.Attempt, error) {
	var a attempt.Attempt
	if err := row.Scan(&a.ID, &a.ChargeID, &a.AgencyID, &a.AttemptNo, &a.Channel, &a.Status,
		&a.Amount, &a.Currency, &a.ExternalReference, &a.PaymentMethodID, &a.ScheduledOn,
		&a.BatchID, &a.ReasonCode, &a.ReasonMessage, &a.PresentedAt, &a.SettledAt,
		&a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *attemptRepository) CreateIfAbsent(ctx context.Context, a *attempt.Attempt) (*attempt.Attempt, bool, error) {
	details := map[string]interface{}{
		"charge_id":  a.ChargeID,
		"attempt_no": a.AttemptNo,
	}

	q := psql.Insert(types.TableNameAttempts.String()).
		Columns(attemptColumns...).
		Values(a.ID, a.ChargeID, a.AgencyID, a.AttemptNo, a.Channel, a.Status, a.Amount, a.Currency,
			a.ExternalReference, a.PaymentMethodID, a.ScheduledOn, a.BatchID, a.ReasonCode,
			a.ReasonMessage, a.PresentedAt, a.SettledAt, a.CreatedAt, a.UpdatedAt).
		OnConflict(entsql.ConflictColumns("charge_id", "attempt_no"), entsql.DoNothing())

	res, err := exec(ctx, r.client, q)
	if err != nil {
		return nil, false, postgres.WrapError(err, "attempt", details)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return a, true, nil
	}

	sel := psql.Select(attemptColumns...).
		From(entsql.Table(types.TableNameAttempts.String())).
		Where(entsql.And(
			entsql.EQ("charge_id", a.ChargeID),
			entsql.EQ("attempt_no", a.AttemptNo),
		))
	existing, err := scanAttempt(queryRow(ctx, r.client, sel))
	if err != nil {
		return nil, false, postgres.WrapError(err, "attempt", details)
	}
	return existing, false, nil
}

func (r *attemptRepository) Get(ctx context.Context, id string) (*attempt.Attempt, error) {
	q := psql.Select(attemptColumns...).
		From(entsql.Table(types.TableNameAttempts.String())).
		Where(entsql.EQ("id", id))

	a, err := scanAttempt(queryRow(ctx, r.client, q))
	if err != nil {
		return nil, postgres.WrapError(err, "attempt", map[string]interface{}{"attempt_id": id})
	}
	return a, nil
}

func (r *attemptRepository) GetByExternalReference(ctx context.Context, ref string) (*attempt.Attempt, error) {
	q := psql.Select(attemptColumns...).
		From(entsql.Table(types.TableNameAttempts.String())).
		Where(entsql.EQ("external_reference", ref))

	a, err := scanAttempt(queryRow(ctx, r.client, q))
	if err != nil {
		return nil, postgres.WrapError(err, "attempt", map[string]interface{}{"external_reference": ref})
	}
	return a, nil
}

func (r *attemptRepository) ListByCharge(ctx context.Context, chargeID string) ([]*attempt.Attempt, error) {
	q := psql.Select(attemptColumns...).
		From(entsql.Table(types.TableNameAttempts.String())).
		Where(entsql.EQ("charge_id", chargeID)).
		OrderBy("attempt_no")

	attempts, err := queryAll(ctx, r.client, q, scanAttempt)
	if err != nil {
		return nil, postgres.WrapError(err, "attempt", map[string]interface{}{"charge_id": chargeID})
	}
	return attempts, nil
}

func (r *attemptRepository) List(ctx context.Context, filter *attempt.AttemptFilter) ([]*attempt.Attempt, error) {
	if filter == nil {
		filter = &attempt.AttemptFilter{}
	}

	preds := []*entsql.Predicate{}
	if filter.Channel != "" {
		preds = append(preds, entsql.EQ("channel", string(filter.Channel)))
	}
	if len(filter.Statuses) > 0 {
		preds = append(preds, entsql.In("status", lo.ToAnySlice(filter.Statuses)...))
	}
	if filter.ScheduledOnOrBefore != nil {
		preds = append(preds, entsql.LTE("scheduled_on", *filter.ScheduledOnOrBefore))
	}

	q := psql.Select(attemptColumns...).
		From(entsql.Table(types.TableNameAttempts.String())).
		OrderBy("scheduled_on", "id").
		Limit(filter.GetLimit()).
		Offset(filter.GetOffset())
	if len(preds) > 0 {
		q = q.Where(entsql.And(preds...))
	}

	attempts, err := queryAll(ctx, r.client, q, scanAttempt)
	if err != nil {
		return nil, postgres.WrapError(err, "attempt", map[string]interface{}{"channel": filter.Channel})
	}
	return attempts, nil
}

func (r *attemptRepository) Update(ctx context.Context, a *attempt.Attempt) error {
	a.UpdatedAt = time.Now().UTC()

	q := psql.Update(types.TableNameAttempts.String()).
		Set("status", a.Status).
		Set("batch_id", a.BatchID).
		Set("reason_code", a.ReasonCode).
		Set("reason_message", a.ReasonMessage).
		Set("presented_at", a.PresentedAt).
		Set("settled_at", a.SettledAt).
		Set("updated_at", a.UpdatedAt).
		Where(entsql.EQ("id", a.ID))

	res, err := exec(ctx, r.client, q)
	if err != nil {
		return postgres.WrapError(err, "attempt", map[string]interface{}{"attempt_id": a.ID})
	}
	return affectedOne(res, "attempt", a.ID)
}
