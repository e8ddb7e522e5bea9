package subscription

import (
	"context"

	"github.com/flexprice/collections/internal/types"
)

// Repository defines the persistence operations the billing engine needs on
// subscriptions and their payment methods.
type Repository interface {
	Get(ctx context.Context, id string) (*Subscription, error)

	// ListBillable returns billable subscriptions ordered by id, a page at a time.
	ListBillable(ctx context.Context, filter *types.QueryFilter) ([]*Subscription, error)

	// UpdateNextAnchorDate sets the next anchor date cache.
	UpdateNextAnchorDate(ctx context.Context, id string, next types.Date) error

	// GetDefaultPaymentMethod returns the default active payment method of the
	// subscription, ErrNotFound when there is none.
	GetDefaultPaymentMethod(ctx context.Context, subscriptionID string) (*PaymentMethod, error)

	GetPaymentMethod(ctx context.Context, id string) (*PaymentMethod, error)
}
