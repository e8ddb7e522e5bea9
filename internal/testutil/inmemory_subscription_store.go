package testutil

import (
	"context"

	"github.com/flexprice/collections/internal/domain/subscription"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/types"
	"github.com/samber/lo"
)

// InMemorySubscriptionStore implements subscription.Repository
type InMemorySubscriptionStore struct {
	subs    *InMemoryStore[*subscription.Subscription]
	methods *InMemoryStore[*subscription.PaymentMethod]
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		subs:    NewInMemoryStore[*subscription.Subscription](),
		methods: NewInMemoryStore[*subscription.PaymentMethod](),
	}
}

func copySubscription(s *subscription.Subscription) *subscription.Subscription {
	c := *s
	if s.NextAnchorDate != nil {
		c.NextAnchorDate = lo.ToPtr(*s.NextAnchorDate)
	}
	return &c
}

// AddSubscription seeds a subscription.
func (s *InMemorySubscriptionStore) AddSubscription(ctx context.Context, sub *subscription.Subscription) error {
	return s.subs.Create(ctx, sub.ID, copySubscription(sub))
}

// AddPaymentMethod seeds a payment method.
func (s *InMemorySubscriptionStore) AddPaymentMethod(ctx context.Context, pm *subscription.PaymentMethod) error {
	c := *pm
	return s.methods.Create(ctx, pm.ID, &c)
}

// SetPaymentMethodMandate links a payment method to a mandate.
func (s *InMemorySubscriptionStore) SetPaymentMethodMandate(ctx context.Context, paymentMethodID, mandateID string) error {
	pm, err := s.methods.Get(ctx, paymentMethodID)
	if err != nil {
		return err
	}
	c := *pm
	c.MandateID = lo.ToPtr(mandateID)
	return s.methods.Update(ctx, paymentMethodID, &c)
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.subs.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Subscription not found").
			WithReportableDetails(map[string]interface{}{"subscription_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return copySubscription(sub), nil
}

func (s *InMemorySubscriptionStore) ListBillable(ctx context.Context, filter *types.QueryFilter) ([]*subscription.Subscription, error) {
	subs, err := s.subs.List(ctx,
		func(sub *subscription.Subscription) bool { return sub.Status.IsBillable() },
		func(a, b *subscription.Subscription) bool { return a.ID < b.ID },
	)
	if err != nil {
		return nil, err
	}
	return lo.Map(page(subs, filter.GetOffset(), filter.GetLimit()), func(sub *subscription.Subscription, _ int) *subscription.Subscription {
		return copySubscription(sub)
	}), nil
}

func (s *InMemorySubscriptionStore) UpdateNextAnchorDate(ctx context.Context, id string, next types.Date) error {
	sub, err := s.subs.Get(ctx, id)
	if err != nil {
		return err
	}
	c := copySubscription(sub)
	c.NextAnchorDate = lo.ToPtr(next)
	return s.subs.Update(ctx, id, c)
}

func (s *InMemorySubscriptionStore) GetDefaultPaymentMethod(ctx context.Context, subscriptionID string) (*subscription.PaymentMethod, error) {
	pm, ok := s.methods.Find(ctx, func(pm *subscription.PaymentMethod) bool {
		return pm.SubscriptionID == subscriptionID && pm.IsDefault && pm.IsActive()
	}, func(a, b *subscription.PaymentMethod) bool { return a.UpdatedAt.After(b.UpdatedAt) })
	if !ok {
		return nil, ierr.NewError("payment method not found").
			WithHint("Subscription has no default active payment method").
			WithReportableDetails(map[string]interface{}{"subscription_id": subscriptionID}).
			Mark(ierr.ErrNotFound)
	}
	c := *pm
	return &c, nil
}

func (s *InMemorySubscriptionStore) GetPaymentMethod(ctx context.Context, id string) (*subscription.PaymentMethod, error) {
	pm, err := s.methods.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c := *pm
	return &c, nil
}
