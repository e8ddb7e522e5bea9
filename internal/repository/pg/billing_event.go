package pg

import (
	"context"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/flexprice/collections/internal/domain/billingevent"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/postgres"
	"github.com/flexprice/collections/internal/types"
)

var billingEventColumns = []string{
	"id", "agency_id", "subscription_id", "event_type", "payload", "actor", "created_at",
}

type billingEventRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewBillingEventRepository(client postgres.IClient, logger *logger.Logger) billingevent.Repository {
	return &billingEventRepository{client: client, logger: logger}
}

func (r *billingEventRepository) Create(ctx context.Context, event *billingevent.Event) error {
	payload, err := toJSON(event.Payload)
	if err != nil {
		return err
	}

	q := psql.Insert(types.TableNameBillingEvents.String()).
		Columns(billingEventColumns...).
		Values(event.ID, event.AgencyID, event.SubscriptionID, event.EventType, payload, event.Actor, event.CreatedAt)

	if _, err := exec(ctx, r.client, q); err != nil {
		return postgres.WrapError(err, "billing event", map[string]interface{}{
			"event_type":      event.EventType,
			"subscription_id": event.SubscriptionID,
		})
	}
	return nil
}

func (r *billingEventRepository) ListBySubscription(ctx context.Context, subscriptionID string) ([]*billingevent.Event, error) {
	q := psql.Select(billingEventColumns...).
		From(entsql.Table(types.TableNameBillingEvents.String())).
		Where(entsql.EQ("subscription_id", subscriptionID)).
		OrderBy("created_at", "id")

	events, err := queryAll(ctx, r.client, q, func(row scanner) (*billingevent.Event, error) {
		var (
			e       billingevent.Event
			payload []byte
		)
		if err := row.Scan(&e.ID, &e.AgencyID, &e.SubscriptionID, &e.EventType, &payload, &e.Actor, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := fromJSON(payload, &e.Payload); err != nil {
			return nil, err
		}
		return &e, nil
	})
	if err != nil {
		return nil, postgres.WrapError(err, "billing event", map[string]interface{}{"subscription_id": subscriptionID})
	}
	return events, nil
}
