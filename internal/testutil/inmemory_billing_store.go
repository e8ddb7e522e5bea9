package testutil

import (
	"context"

	"github.com/flexprice/collections/internal/domain/attempt"
	"github.com/flexprice/collections/internal/domain/billingcycle"
	"github.com/flexprice/collections/internal/domain/charge"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/types"
	"github.com/samber/lo"
)

// InMemoryBillingCycleStore implements billingcycle.Repository
type InMemoryBillingCycleStore struct {
	*InMemoryStore[*billingcycle.BillingCycle]
}

func NewInMemoryBillingCycleStore() *InMemoryBillingCycleStore {
	return &InMemoryBillingCycleStore{InMemoryStore: NewInMemoryStore[*billingcycle.BillingCycle]()}
}

func (s *InMemoryBillingCycleStore) CreateIfAbsent(ctx context.Context, cycle *billingcycle.BillingCycle) (*billingcycle.BillingCycle, bool, error) {
	c := *cycle
	stored, created := s.InMemoryStore.CreateIfAbsent(ctx, cycle.ID, &c, func(existing *billingcycle.BillingCycle) bool {
		return existing.SubscriptionID == cycle.SubscriptionID && existing.AnchorDate.Equal(cycle.AnchorDate)
	})
	out := *stored
	return &out, created, nil
}

func (s *InMemoryBillingCycleStore) Get(ctx context.Context, id string) (*billingcycle.BillingCycle, error) {
	c, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out := *c
	return &out, nil
}

func (s *InMemoryBillingCycleStore) GetByAnchor(ctx context.Context, subscriptionID string, anchorDate types.Date) (*billingcycle.BillingCycle, error) {
	c, ok := s.Find(ctx, func(c *billingcycle.BillingCycle) bool {
		return c.SubscriptionID == subscriptionID && c.AnchorDate.Equal(anchorDate)
	}, nil)
	if !ok {
		return nil, ierr.NewError("billing cycle not found").Mark(ierr.ErrNotFound)
	}
	out := *c
	return &out, nil
}

// InMemoryChargeStore implements charge.Repository
type InMemoryChargeStore struct {
	*InMemoryStore[*charge.Charge]
	// fiscalIssued reports whether a charge has an issued fiscal document
	fiscalIssued func(chargeID string) bool
}

func NewInMemoryChargeStore() *InMemoryChargeStore {
	return &InMemoryChargeStore{InMemoryStore: NewInMemoryStore[*charge.Charge]()}
}

func copyCharge(c *charge.Charge) *charge.Charge {
	out := *c
	return &out
}

func (s *InMemoryChargeStore) CreateIfAbsent(ctx context.Context, c *charge.Charge) (*charge.Charge, bool, error) {
	stored, created := s.InMemoryStore.CreateIfAbsent(ctx, c.ID, copyCharge(c), func(existing *charge.Charge) bool {
		return existing.AgencyID == c.AgencyID && existing.IdempotencyKey == c.IdempotencyKey
	})
	return copyCharge(stored), created, nil
}

func (s *InMemoryChargeStore) Get(ctx context.Context, id string) (*charge.Charge, error) {
	c, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Charge not found").
			WithReportableDetails(map[string]interface{}{"charge_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return copyCharge(c), nil
}

func (s *InMemoryChargeStore) GetByCycle(ctx context.Context, cycleID string) (*charge.Charge, error) {
	c, ok := s.Find(ctx, func(c *charge.Charge) bool {
		return lo.FromPtr(c.CycleID) == cycleID && c.Purpose == types.ChargePurposeRecurring
	}, nil)
	if !ok {
		return nil, ierr.NewError("charge not found").Mark(ierr.ErrNotFound)
	}
	return copyCharge(c), nil
}

func (s *InMemoryChargeStore) List(ctx context.Context, filter *charge.ChargeFilter) ([]*charge.Charge, error) {
	if filter == nil {
		filter = &charge.ChargeFilter{}
	}
	items, err := s.InMemoryStore.List(ctx, func(c *charge.Charge) bool {
		if len(filter.Statuses) > 0 && !lo.Contains(filter.Statuses, c.Status) {
			return false
		}
		if filter.DueOnOrBefore != nil && c.DueDate.After(*filter.DueOnOrBefore) {
			return false
		}
		if filter.WithoutFiscalDocument && s.fiscalIssued != nil && s.fiscalIssued(c.ID) {
			return false
		}
		return true
	}, func(a, b *charge.Charge) bool {
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		return a.ID < b.ID
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(page(items, filter.GetOffset(), filter.GetLimit()), func(c *charge.Charge, _ int) *charge.Charge {
		return copyCharge(c)
	}), nil
}

func (s *InMemoryChargeStore) Update(ctx context.Context, c *charge.Charge) error {
	return s.InMemoryStore.Update(ctx, c.ID, copyCharge(c))
}

// InMemoryAttemptStore implements attempt.Repository
type InMemoryAttemptStore struct {
	*InMemoryStore[*attempt.Attempt]
}

func NewInMemoryAttemptStore() *InMemoryAttemptStore {
	return &InMemoryAttemptStore{InMemoryStore: NewInMemoryStore[*attempt.Attempt]()}
}

func copyAttempt(a *attempt.Attempt) *attempt.Attempt {
	out := *a
	return &out
}

func (s *InMemoryAttemptStore) CreateIfAbsent(ctx context.Context, a *attempt.Attempt) (*attempt.Attempt, bool, error) {
	stored, created := s.InMemoryStore.CreateIfAbsent(ctx, a.ID, copyAttempt(a), func(existing *attempt.Attempt) bool {
		return existing.ChargeID == a.ChargeID && existing.AttemptNo == a.AttemptNo
	})
	return copyAttempt(stored), created, nil
}

func (s *InMemoryAttemptStore) Get(ctx context.Context, id string) (*attempt.Attempt, error) {
	a, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyAttempt(a), nil
}

func (s *InMemoryAttemptStore) GetByExternalReference(ctx context.Context, ref string) (*attempt.Attempt, error) {
	a, ok := s.Find(ctx, func(a *attempt.Attempt) bool { return a.ExternalReference == ref }, nil)
	if !ok {
		return nil, ierr.NewError("attempt not found").
			WithReportableDetails(map[string]interface{}{"external_reference": ref}).
			Mark(ierr.ErrNotFound)
	}
	return copyAttempt(a), nil
}

func (s *InMemoryAttemptStore) ListByCharge(ctx context.Context, chargeID string) ([]*attempt.Attempt, error) {
	items, err := s.InMemoryStore.List(ctx,
		func(a *attempt.Attempt) bool { return a.ChargeID == chargeID },
		func(a, b *attempt.Attempt) bool { return a.AttemptNo < b.AttemptNo },
	)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(a *attempt.Attempt, _ int) *attempt.Attempt { return copyAttempt(a) }), nil
}

func (s *InMemoryAttemptStore) List(ctx context.Context, filter *attempt.AttemptFilter) ([]*attempt.Attempt, error) {
	if filter == nil {
		filter = &attempt.AttemptFilter{}
	}
	items, err := s.InMemoryStore.List(ctx, func(a *attempt.Attempt) bool {
		if filter.Channel != "" && a.Channel != filter.Channel {
			return false
		}
		if len(filter.Statuses) > 0 && !lo.Contains(filter.Statuses, a.Status) {
			return false
		}
		if filter.ScheduledOnOrBefore != nil && a.ScheduledOn.After(*filter.ScheduledOnOrBefore) {
			return false
		}
		return true
	}, func(a, b *attempt.Attempt) bool {
		if !a.ScheduledOn.Equal(b.ScheduledOn) {
			return a.ScheduledOn.Before(b.ScheduledOn)
		}
		return a.ID < b.ID
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(page(items, filter.GetOffset(), filter.GetLimit()), func(a *attempt.Attempt, _ int) *attempt.Attempt {
		return copyAttempt(a)
	}), nil
}

func (s *InMemoryAttemptStore) Update(ctx context.Context, a *attempt.Attempt) error {
	return s.InMemoryStore.Update(ctx, a.ID, copyAttempt(a))
}

// SetFiscalIssued wires the lookup List uses for WithoutFiscalDocument.
func (s *InMemoryChargeStore) SetFiscalIssued(fn func(chargeID string) bool) {
	s.fiscalIssued = fn
}
