package fallback

import "context"

type Repository interface {
	// CreateIfAbsent inserts the intent unless one with the same idempotency key
	// exists. It returns the stored intent and whether this call created it.
	CreateIfAbsent(ctx context.Context, intent *Intent) (*Intent, bool, error)

	Get(ctx context.Context, id string) (*Intent, error)
	List(ctx context.Context, filter *IntentFilter) ([]*Intent, error)
	Update(ctx context.Context, intent *Intent) error
}
