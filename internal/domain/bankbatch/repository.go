package bankbatch

import (
	"context"

	"github.com/flexprice/collections/internal/types"
)

type Repository interface {
	Create(ctx context.Context, b *Batch) error
	Get(ctx context.Context, id string) (*Batch, error)
	Update(ctx context.Context, b *Batch) error

	// CountByBusinessDate counts the files of a direction already recorded for a
	// business date. Presentment uses it as the file sequence.
	CountByBusinessDate(ctx context.Context, direction types.BankBatchDirection, businessDate types.Date) (int, error)

	// CreateResponseRowIfAbsent records an applied row. It returns false when the
	// (attempt_id, line_hash) pair was already recorded.
	CreateResponseRowIfAbsent(ctx context.Context, row *ResponseRow) (bool, error)
}
