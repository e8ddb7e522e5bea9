package service

import (
	"context"
	"sync"

	"github.com/flexprice/collections/internal/domain/billingevent"
	"github.com/flexprice/collections/internal/types"
)

type eventBufferKey struct{}

// eventBuffer collects the events recorded inside a transaction until it commits.
type eventBuffer struct {
	mu     sync.Mutex
	events []*billingevent.Event
}

func (b *eventBuffer) add(e *billingevent.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

// withTx runs fn in a transaction and publishes the events fn recorded once the
// outermost transaction has committed. Nothing is published on rollback.
func (p ServiceParams) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(eventBufferKey{}).(*eventBuffer); ok {
		return p.DB.WithTx(ctx, fn)
	}

	buf := &eventBuffer{}
	if err := p.DB.WithTx(context.WithValue(ctx, eventBufferKey{}, buf), fn); err != nil {
		return err
	}
	p.publishEvents(ctx, buf.events)
	return nil
}

// recordEvent appends the event to the audit log. Inside withTx it is published
// after commit, otherwise right away.
func (p ServiceParams) recordEvent(
	ctx context.Context,
	agencyID, subscriptionID string,
	eventType types.BillingEventType,
	payload map[string]interface{},
) error {
	event := billingevent.New(agencyID, subscriptionID, eventType, types.GetActor(ctx), payload)
	if err := p.EventRepo.Create(ctx, event); err != nil {
		return err
	}

	if buf, ok := ctx.Value(eventBufferKey{}).(*eventBuffer); ok {
		buf.add(event)
		return nil
	}
	p.publishEvents(ctx, []*billingevent.Event{event})
	return nil
}

// publishEvents is best effort: the audit row is the source of truth.
func (p ServiceParams) publishEvents(ctx context.Context, events []*billingevent.Event) {
	if p.EventPublisher == nil {
		return
	}
	for _, e := range events {
		if err := p.EventPublisher.Publish(ctx, e); err != nil {
			p.Logger.Errorw("failed to publish billing event",
				"event_id", e.ID,
				"event_type", e.EventType,
				"subscription_id", e.SubscriptionID,
				"error", err,
			)
		}
	}
}
