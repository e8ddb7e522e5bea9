package pg

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/flexprice/collections/internal/domain/mandate"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/postgres"
	"github.com/flexprice/collections/internal/types"
)

var mandateColumns = []string{
	"id", "agency_id", "subscription_id", "payment_method_id", "status", "bank_reference",
	"rejection_reason", "rejection_code", "activated_at", "revoked_at", "last_status_check_at",
	"created_at", "updated_at",
}

type mandateRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewMandateRepository(client postgres.IClient, logger *logger.Logger) mandate.Repository {
	return &mandateRepository{client: client, logger: logger}
}

func scanMandate(row scanner) (*mandate.Mandate, error) {
	var m mandate.Mandate
	if err := row.Scan(&m.ID, &m.AgencyID, &m.SubscriptionID, &m.PaymentMethodID, &m.Status,
		&m.BankReference, &m.RejectionReason, &m.RejectionCode, &m.ActivatedAt, &m.RevokedAt,
		&m.LastStatusCheckAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *mandateRepository) get(ctx context.Context, pred *entsql.Predicate, forUpdate bool, details map[string]interface{}) (*mandate.Mandate, error) {
	q := psql.Select(mandateColumns...).
		From(entsql.Table(types.TableNameMandates.String())).
		Where(pred)
	if forUpdate {
		q = q.ForUpdate()
	}

	m, err := scanMandate(queryRow(ctx, r.client, q))
	if err != nil {
		return nil, postgres.WrapError(err, "mandate", details)
	}
	return m, nil
}

func (r *mandateRepository) Get(ctx context.Context, id string) (*mandate.Mandate, error) {
	return r.get(ctx, entsql.EQ("id", id), false, map[string]interface{}{"mandate_id": id})
}

func (r *mandateRepository) GetForUpdate(ctx context.Context, id string) (*mandate.Mandate, error) {
	return r.get(ctx, entsql.EQ("id", id), true, map[string]interface{}{"mandate_id": id})
}

func (r *mandateRepository) GetByPaymentMethod(ctx context.Context, paymentMethodID string) (*mandate.Mandate, error) {
	return r.get(ctx, entsql.EQ("payment_method_id", paymentMethodID), false,
		map[string]interface{}{"payment_method_id": paymentMethodID})
}

func (r *mandateRepository) Update(ctx context.Context, m *mandate.Mandate) error {
	m.UpdatedAt = time.Now().UTC()

	q := psql.Update(types.TableNameMandates.String()).
		Set("status", m.Status).
		Set("bank_reference", m.BankReference).
		Set("rejection_reason", m.RejectionReason).
		Set("rejection_code", m.RejectionCode).
		Set("activated_at", m.ActivatedAt).
		Set("revoked_at", m.RevokedAt).
		Set("last_status_check_at", m.LastStatusCheckAt).
		Set("updated_at", m.UpdatedAt).
		Where(entsql.EQ("id", m.ID))

	res, err := exec(ctx, r.client, q)
	if err != nil {
		return postgres.WrapError(err, "mandate", map[string]interface{}{"mandate_id": m.ID})
	}
	return affectedOne(res, "mandate", m.ID)
}
