package mandate

import "context"

type Repository interface {
	Get(ctx context.Context, id string) (*Mandate, error)

	// GetForUpdate locks the mandate row for the surrounding transaction.
	GetForUpdate(ctx context.Context, id string) (*Mandate, error)

	GetByPaymentMethod(ctx context.Context, paymentMethodID string) (*Mandate, error)
	Update(ctx context.Context, m *Mandate) error
}
