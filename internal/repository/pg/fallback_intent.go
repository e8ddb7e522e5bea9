package pg

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/flexprice/collections/internal/domain/fallback"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/postgres"
	"github.com/flexprice/collections/internal/types"
	"github.com/samber/lo"
)

var fallbackIntentColumns = []string{
	"id", "agency_id", "charge_id", "attempt_id", "idempotency_key", "status", "amount", "currency",
	"provider_reference", "provider_status", "payment_url", "qr_payload", "expires_at", "paid_at",
	"created_at", "updated_at",
}

type fallbackIntentRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewFallbackIntentRepository(client postgres.IClient, logger *logger.Logger) fallback.Repository {
	return &fallbackIntentRepository{client: client, logger: logger}
}

func scanFallbackIntent(row scanner) (*fallback.Intent, error) {
	var i fallback.Intent
	if err := row.Scan(&i.ID, &i.AgencyID, &i.ChargeID, &i.AttemptID, &i.IdempotencyKey, &i.Status,
		&i.Amount, &i.Currency, &i.ProviderReference, &i.ProviderStatus, &i.PaymentURL, &i.QRPayload,
		&i.ExpiresAt, &i.PaidAt, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *fallbackIntentRepository) CreateIfAbsent(ctx context.Context, i *fallback.Intent) (*fallback.Intent, bool, error) {
	details := map[string]interface{}{"charge_id": i.ChargeID, "idempotency_key": i.IdempotencyKey}

	q := psql.Insert(types.TableNameFallbackIntents.String()).
		Columns(fallbackIntentColumns...).
		Values(i.ID, i.AgencyID, i.ChargeID, i.AttemptID, i.IdempotencyKey, i.Status, i.Amount,
			i.Currency, i.ProviderReference, i.ProviderStatus, i.PaymentURL, i.QRPayload, i.ExpiresAt,
			i.PaidAt, i.CreatedAt, i.UpdatedAt).
		OnConflict(entsql.ConflictColumns("idempotency_key"), entsql.DoNothing())

	res, err := exec(ctx, r.client, q)
	if err != nil {
		return nil, false, postgres.WrapError(err, "fallback intent", details)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return i, true, nil
	}

	sel := psql.Select(fallbackIntentColumns...).
		From(entsql.Table(types.TableNameFallbackIntents.String())).
		Where(entsql.EQ("idempotency_key", i.IdempotencyKey))
	existing, err := scanFallbackIntent(queryRow(ctx, r.client, sel))
	if err != nil {
		return nil, false, postgres.WrapError(err, "fallback intent", details)
	}
	return existing, false, nil
}

func (r *fallbackIntentRepository) Get(ctx context.Context, id string) (*fallback.Intent, error) {
	q := psql.Select(fallbackIntentColumns...).
		From(entsql.Table(types.TableNameFallbackIntents.String())).
		Where(entsql.EQ("id", id))

	i, err := scanFallbackIntent(queryRow(ctx, r.client, q))
	if err != nil {
		return nil, postgres.WrapError(err, "fallback intent", map[string]interface{}{"intent_id": id})
	}
	return i, nil
}

func (r *fallbackIntentRepository) List(ctx context.Context, filter *fallback.IntentFilter) ([]*fallback.Intent, error) {
	if filter == nil {
		filter = &fallback.IntentFilter{}
	}

	q := psql.Select(fallbackIntentColumns...).
		From(entsql.Table(types.TableNameFallbackIntents.String())).
		OrderBy("created_at", "id").
		Limit(filter.GetLimit()).
		Offset(filter.GetOffset())
	if len(filter.Statuses) > 0 {
		q = q.Where(entsql.In("status", lo.ToAnySlice(filter.Statuses)...))
	}

	intents, err := queryAll(ctx, r.client, q, scanFallbackIntent)
	if err != nil {
		return nil, postgres.WrapError(err, "fallback intent", map[string]interface{}{"statuses": filter.Statuses})
	}
	return intents, nil
}

func (r *fallbackIntentRepository) Update(ctx context.Context, i *fallback.Intent) error {
	i.UpdatedAt = time.Now().UTC()

	q := psql.Update(types.TableNameFallbackIntents.String()).
		Set("status", i.Status).
		Set("provider_reference", i.ProviderReference).
		Set("provider_status", i.ProviderStatus).
		Set("payment_url", i.PaymentURL).
		Set("qr_payload", i.QRPayload).
		Set("expires_at", i.ExpiresAt).
		Set("paid_at", i.PaidAt).
		Set("updated_at", i.UpdatedAt).
		Where(entsql.EQ("id", i.ID))

	res, err := exec(ctx, r.client, q)
	if err != nil {
		return postgres.WrapError(err, "fallback intent", map[string]interface{}{"intent_id": i.ID})
	}
	return affectedOne(res, "fallback intent", i.ID)
}
