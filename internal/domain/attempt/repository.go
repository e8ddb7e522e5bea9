package attempt

import "context"

type Repository interface {
	// CreateIfAbsent inserts the attempt unless (charge_id, attempt_no) exists. It
	// returns the stored attempt and whether this call created it.
	CreateIfAbsent(ctx context.Context, a *Attempt) (*Attempt, bool, error)
	Get(ctx context.Context, id string) (*Attempt, error)
	GetByExternalReference(ctx context.Context, ref string) (*Attempt, error)
	ListByCharge(ctx context.Context, chargeID string) ([]*Attempt, error)
	List(ctx context.Context, filter *AttemptFilter) ([]*Attempt, error)
	Update(ctx context.Context, a *Attempt) error
}
