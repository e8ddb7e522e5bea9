package fxrate

import (
	"context"

	"github.com/flexprice/collections/internal/types"
)

type Repository interface {
	Create(ctx context.Context, rate *Rate) error

	// GetEffective returns the latest rate with an effective date on or before on,
	// ErrNotFound when there is none.
	GetEffective(ctx context.Context, base, quote string, on types.Date) (*Rate, error)

	// GetLatest returns the latest rate regardless of date.
	GetLatest(ctx context.Context, base, quote string) (*Rate, error)
}
