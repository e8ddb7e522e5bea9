package testutil

import (
	"context"

	"github.com/flexprice/collections/internal/domain/fxrate"
	"github.com/flexprice/collections/internal/domain/plan"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/types"
)

// InMemoryPlanStore implements plan.Repository
type InMemoryPlanStore struct {
	prices      *InMemoryStore[*plan.PlanPrice]
	adjustments *InMemoryStore[*plan.Adjustment]
}

func NewInMemoryPlanStore() *InMemoryPlanStore {
	return &InMemoryPlanStore{
		prices:      NewInMemoryStore[*plan.PlanPrice](),
		adjustments: NewInMemoryStore[*plan.Adjustment](),
	}
}

func (s *InMemoryPlanStore) AddPlanPrice(ctx context.Context, p *plan.PlanPrice) error {
	return s.prices.Create(ctx, p.PlanKey, p)
}

func (s *InMemoryPlanStore) AddAdjustment(ctx context.Context, a *plan.Adjustment) error {
	return s.adjustments.Create(ctx, a.ID, a)
}

func (s *InMemoryPlanStore) GetPlanPrice(ctx context.Context, planKey string) (*plan.PlanPrice, error) {
	p, err := s.prices.Get(ctx, planKey)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Plan price not found").
			WithReportableDetails(map[string]interface{}{"plan_key": planKey}).
			Mark(ierr.ErrNotFound)
	}
	c := *p
	return &c, nil
}

func (s *InMemoryPlanStore) ListAdjustments(ctx context.Context, subscriptionID string) ([]*plan.Adjustment, error) {
	return s.adjustments.List(ctx,
		func(a *plan.Adjustment) bool { return a.SubscriptionID == subscriptionID },
		func(a, b *plan.Adjustment) bool { return a.ID < b.ID },
	)
}

// InMemoryFXRateStore implements fxrate.Repository
type InMemoryFXRateStore struct {
	*InMemoryStore[*fxrate.Rate]
	// Lookups counts repository reads, for cache assertions
	Lookups int
}

func NewInMemoryFXRateStore() *InMemoryFXRateStore {
	return &InMemoryFXRateStore{InMemoryStore: NewInMemoryStore[*fxrate.Rate]()}
}

func (s *InMemoryFXRateStore) Create(ctx context.Context, rate *fxrate.Rate) error {
	if rate.ID == "" {
		rate.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_FX_RATE)
	}
	return s.InMemoryStore.Create(ctx, rate.ID, rate)
}

func latestFirst(a, b *fxrate.Rate) bool {
	if !a.EffectiveDate.Equal(b.EffectiveDate) {
		return a.EffectiveDate.After(b.EffectiveDate)
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func (s *InMemoryFXRateStore) GetEffective(ctx context.Context, base, quote string, on types.Date) (*fxrate.Rate, error) {
	s.Lookups++
	rate, ok := s.Find(ctx, func(r *fxrate.Rate) bool {
		return r.Base == base && r.Quote == quote && !r.EffectiveDate.After(on)
	}, latestFirst)
	if !ok {
		return nil, ierr.NewError("fx rate not found").
			WithHintf("No %s/%s rate effective on %s", quote, base, on).
			Mark(ierr.ErrNotFound)
	}
	return rate, nil
}

func (s *InMemoryFXRateStore) GetLatest(ctx context.Context, base, quote string) (*fxrate.Rate, error) {
	s.Lookups++
	rate, ok := s.Find(ctx, func(r *fxrate.Rate) bool {
		return r.Base == base && r.Quote == quote
	}, latestFirst)
	if !ok {
		return nil, ierr.NewError("fx rate not found").
			WithHintf("No %s/%s rate", quote, base).
			Mark(ierr.ErrNotFound)
	}
	return rate, nil
}
