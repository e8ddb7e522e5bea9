package billingevent

import "context"

type Repository interface {
	Create(ctx context.Context, event *Event) error
	ListBySubscription(ctx context.Context, subscriptionID string) ([]*Event, error)
}
