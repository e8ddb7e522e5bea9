package pg

import (
	"context"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/flexprice/collections/internal/domain/billingcycle"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/postgres"
	"github.com/flexprice/collections/internal/types"
)

var billingCycleColumns = []string{
	"id", "subscription_id", "agency_id", "anchor_date", "period_start", "period_end",
	"snapshot", "created_at",
}

type billingCycleRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewBillingCycleRepository(client postgres.IClient, logger *logger.Logger) billingcycle.Repository {
	return &billingCycleRepository{client: client, logger: logger}
}

func scanBillingCycle(row scanner) (*billingcycle.BillingCycle, error) {
	var (
		c        billingcycle.BillingCycle
		snapshot []byte
	)
	if err := row.Scan(&c.ID, &c.SubscriptionID, &c.AgencyID, &c.AnchorDate, &c.PeriodStart,
		&c.PeriodEnd, &snapshot, &c.CreatedAt); err != nil {
		return nil, err
	}
	if len(snapshot) > 0 {
		c.Snapshot = &billingcycle.PricingSnapshot{}
		if err := fromJSON(snapshot, c.Snapshot); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func (r *billingCycleRepository) CreateIfAbsent(ctx context.Context, cycle *billingcycle.BillingCycle) (*billingcycle.BillingCycle, bool, error) {
	details := map[string]interface{}{
		"subscription_id": cycle.SubscriptionID,
		"anchor_date":     cycle.AnchorDate.String(),
	}

	snapshot, err := toJSON(cycle.Snapshot)
	if err != nil {
		return nil, false, err
	}

	q := psql.Insert(types.TableNameBillingCycles.String()).
		Columns(billingCycleColumns...).
		Values(cycle.ID, cycle.SubscriptionID, cycle.AgencyID, cycle.AnchorDate, cycle.PeriodStart,
			cycle.PeriodEnd, snapshot, cycle.CreatedAt).
		OnConflict(entsql.ConflictColumns("subscription_id", "anchor_date"), entsql.DoNothing())

	res, err := exec(ctx, r.client, q)
	if err != nil {
		return nil, false, postgres.WrapError(err, "billing cycle", details)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return cycle, true, nil
	}

	r.logger.Debugw("billing cycle already exists", "subscription_id", cycle.SubscriptionID, "anchor_date", cycle.AnchorDate.String())
	existing, err := r.GetByAnchor(ctx, cycle.SubscriptionID, cycle.AnchorDate)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *billingCycleRepository) Get(ctx context.Context, id string) (*billingcycle.BillingCycle, error) {
	q := psql.Select(billingCycleColumns...).
		From(entsql.Table(types.TableNameBillingCycles.String())).
		Where(entsql.EQ("id", id))

	c, err := scanBillingCycle(queryRow(ctx, r.client, q))
	if err != nil {
		return nil, postgres.WrapError(err, "billing cycle", map[string]interface{}{"cycle_id": id})
	}
	return c, nil
}

func (r *billingCycleRepository) GetByAnchor(ctx context.Context, subscriptionID string, anchorDate types.Date) (*billingcycle.BillingCycle, error) {
	q := psql.Select(billingCycleColumns...).
		From(entsql.Table(types.TableNameBillingCycles.String())).
		Where(entsql.And(
			entsql.EQ("subscription_id", subscriptionID),
			entsql.EQ("anchor_date", anchorDate),
		))

	c, err := scanBillingCycle(queryRow(ctx, r.client, q))
	if err != nil {
		return nil, postgres.WrapError(err, "billing cycle", map[string]interface{}{
			"subscription_id": subscriptionID,
			"anchor_date":     anchorDate.String(),
		})
	}
	return c, nil
}
