package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/collections/internal/domain/billingevent"
	"github.com/flexprice/collections/internal/types"
	"github.com/samber/lo"
)

// InMemoryEventPublisher records published billing events.
type InMemoryEventPublisher struct {
	mu     sync.Mutex
	events []*billingevent.Event
	err    error
}

func NewInMemoryEventPublisher() *InMemoryEventPublisher {
	return &InMemoryEventPublisher{}
}

func (p *InMemoryEventPublisher) Publish(_ context.Context, event *billingevent.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

// FailWith makes every following Publish return err. nil restores publishing.
func (p *InMemoryEventPublisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *InMemoryEventPublisher) Events() []*billingevent.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*billingevent.Event(nil), p.events...)
}

func (p *InMemoryEventPublisher) Types() []types.BillingEventType {
	return lo.Map(p.Events(), func(e *billingevent.Event, _ int) types.BillingEventType {
		return e.EventType
	})
}

func (p *InMemoryEventPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

func (p *InMemoryEventPublisher) CountOf(eventType types.BillingEventType) int {
	return lo.Count(p.Types(), eventType)
}
