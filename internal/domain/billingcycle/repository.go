package billingcycle

import (
	"context"

	"github.com/flexprice/collections/internal/types"
)

type Repository interface {
	// CreateIfAbsent inserts the cycle unless one already exists for
	// (subscription_id, anchor_date). It returns the stored cycle and whether
	// this call created it.
	CreateIfAbsent(ctx context.Context, cycle *BillingCycle) (*BillingCycle, bool, error)

	Get(ctx context.Context, id string) (*BillingCycle, error)

	GetByAnchor(ctx context.Context, subscriptionID string, anchorDate types.Date) (*BillingCycle, error)
}
