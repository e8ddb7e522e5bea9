package plan

import "context"

// Repository reads the plan catalog. The catalog is managed elsewhere.
type Repository interface {
	GetPlanPrice(ctx context.Context, planKey string) (*PlanPrice, error)
	ListAdjustments(ctx context.Context, subscriptionID string) ([]*Adjustment, error)
}
