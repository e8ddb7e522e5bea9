package pg

import (
	"context"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/flexprice/collections/internal/domain/plan"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/postgres"
	"github.com/flexprice/collections/internal/types"
)

type planRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewPlanRepository(client postgres.IClient, logger *logger.Logger) plan.Repository {
	return &planRepository{client: client, logger: logger}
}

func (r *planRepository) GetPlanPrice(ctx context.Context, planKey string) (*plan.PlanPrice, error) {
	q := psql.Select("plan_key", "base_price", "included_users", "extra_user_price", "currency").
		From(entsql.Table(types.TableNamePlanPrices.String())).
		Where(entsql.EQ("plan_key", planKey))

	var p plan.PlanPrice
	err := queryRow(ctx, r.client, q).Scan(&p.PlanKey, &p.BasePrice, &p.IncludedUsers, &p.ExtraUserPrice, &p.Currency)
	if err != nil {
		return nil, postgres.WrapError(err, "plan price", map[string]interface{}{"plan_key": planKey})
	}
	return &p, nil
}

func (r *planRepository) ListAdjustments(ctx context.Context, subscriptionID string) ([]*plan.Adjustment, error) {
	q := psql.Select("id", "subscription_id", "code", "description", "kind", "amount", "percent",
		"valid_from", "valid_to", "created_at").
		From(entsql.Table(types.TableNameAdjustments.String())).
		Where(entsql.EQ("subscription_id", subscriptionID)).
		OrderBy("created_at", "id")

	adjustments, err := queryAll(ctx, r.client, q, func(row scanner) (*plan.Adjustment, error) {
		var a plan.Adjustment
		if err := row.Scan(&a.ID, &a.SubscriptionID, &a.Code, &a.Description, &a.Kind, &a.Amount,
			&a.Percent, &a.ValidFrom, &a.ValidTo, &a.CreatedAt); err != nil {
			return nil, err
		}
		return &a, nil
	})
	if err != nil {
		return nil, postgres.WrapError(err, "adjustment", map[string]interface{}{"subscription_id": subscriptionID})
	}
	return adjustments, nil
}
