package charge

import "context"

type Repository interface {
	// CreateIfAbsent inserts the charge unless one with the same (agency_id,
	// idempotency_key) exists. It returns the stored charge and whether this call created it.
	CreateIfAbsent(ctx context.Context, c *Charge) (*Charge, bool, error)

	Get(ctx context.Context, id string) (*Charge, error)
	GetByCycle(ctx context.Context, cycleID string) (*Charge, error)
	List(ctx context.Context, filter *ChargeFilter) ([]*Charge, error)

	// Update persists status, retry and paid fields.
	Update(ctx context.Context, c *Charge) error
}
