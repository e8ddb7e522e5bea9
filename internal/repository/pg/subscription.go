package pg

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/flexprice/collections/internal/domain/subscription"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/postgres"
	"github.com/flexprice/collections/internal/types"
)

var subscriptionColumns = []string{
	"id", "agency_id", "status", "plan_key", "anchor_day", "timezone", "billing_users",
	"discount_percent", "next_anchor_date", "created_at", "updated_at",
}

var paymentMethodColumns = []string{
	"id", "subscription_id", "agency_id", "type", "status", "is_default", "holder_name",
	"holder_tax_id", "account_last4", "mandate_id", "created_at", "updated_at",
}

type subscriptionRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewSubscriptionRepository(client postgres.IClient, logger *logger.Logger) subscription.Repository {
	return &subscriptionRepository{client: client, logger: logger}
}

func scanSubscription(row scanner) (*subscription.Subscription, error) {
	var s subscription.Subscription
	err := row.Scan(&s.ID, &s.AgencyID, &s.Status, &s.PlanKey, &s.AnchorDay, &s.Timezone,
		&s.BillingUsers, &s.DiscountPercent, &s.NextAnchorDate, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanPaymentMethod(row scanner) (*subscription.PaymentMethod, error) {
	var p subscription.PaymentMethod
	err := row.Scan(&p.ID, &p.SubscriptionID, &p.AgencyID, &p.Type, &p.Status, &p.IsDefault,
		&p.HolderName, &p.HolderTaxID, &p.AccountLast4, &p.MandateID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	q := psql.Select(subscriptionColumns...).
		From(entsql.Table(types.TableNameSubscriptions.String())).
		Where(entsql.EQ("id", id))

	s, err := scanSubscription(queryRow(ctx, r.client, q))
	if err != nil {
		return nil, postgres.WrapError(err, "subscription", map[string]interface{}{"subscription_id": id})
	}
	return s, nil
}

func (r *subscriptionRepository) ListBillable(ctx context.Context, filter *types.QueryFilter) ([]*subscription.Subscription, error) {
	q := psql.Select(subscriptionColumns...).
		From(entsql.Table(types.TableNameSubscriptions.String())).
		Where(entsql.In("status",
			string(types.SubscriptionStatusActive),
			string(types.SubscriptionStatusPastDue),
		)).
		OrderBy("id").
		Limit(filter.GetLimit()).
		Offset(filter.GetOffset())

	subs, err := queryAll(ctx, r.client, q, scanSubscription)
	if err != nil {
		return nil, postgres.WrapError(err, "subscription", map[string]interface{}{
			"limit":  filter.GetLimit(),
			"offset": filter.GetOffset(),
		})
	}
	return subs, nil
}

func (r *subscriptionRepository) UpdateNextAnchorDate(ctx context.Context, id string, next types.Date) error {
	r.logger.Debugw("advancing next anchor date", "subscription_id", id, "next_anchor_date", next.String())

	q := psql.Update(types.TableNameSubscriptions.String()).
		Set("next_anchor_date", next).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id))

	res, err := exec(ctx, r.client, q)
	if err != nil {
		return postgres.WrapError(err, "subscription", map[string]interface{}{"subscription_id": id})
	}
	return affectedOne(res, "subscription", id)
}

func (r *subscriptionRepository) GetDefaultPaymentMethod(ctx context.Context, subscriptionID string) (*subscription.PaymentMethod, error) {
	q := psql.Select(paymentMethodColumns...).
		From(entsql.Table(types.TableNamePaymentMethods.String())).
		Where(entsql.And(
			entsql.EQ("subscription_id", subscriptionID),
			entsql.EQ("is_default", true),
			entsql.EQ("status", string(types.PaymentMethodStatusActive)),
		)).
		OrderBy(entsql.Desc("updated_at")).
		Limit(1)

	pm, err := scanPaymentMethod(queryRow(ctx, r.client, q))
	if err != nil {
		return nil, postgres.WrapError(err, "payment method", map[string]interface{}{"subscription_id": subscriptionID})
	}
	return pm, nil
}

func (r *subscriptionRepository) GetPaymentMethod(ctx context.Context, id string) (*subscription.PaymentMethod, error) {
	q := psql.Select(paymentMethodColumns...).
		From(entsql.Table(types.TableNamePaymentMethods.String())).
		Where(entsql.EQ("id", id))

	pm, err := scanPaymentMethod(queryRow(ctx, r.client, q))
	if err != nil {
		return nil, postgres.WrapError(err, "payment method", map[string]interface{}{"payment_method_id": id})
	}
	return pm, nil
}
