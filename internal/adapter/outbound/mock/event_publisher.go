package mock

import (
	"context"
	"sync"

	"batchflow/internal/port/outbound"
)

// EventPublisher records published lifecycle events for verification.
type EventPublisher struct {
	mu     sync.Mutex
	events []outbound.LifecycleEvent

	// PublishErr, when set, is returned by every publish call.
	PublishErr error
}

// NewEventPublisher creates a recording event publisher.
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{}
}

// PublishLifecycleEvent implements outbound.EventPublisher.
func (p *EventPublisher) PublishLifecycleEvent(_ context.Context, event outbound.LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.PublishErr != nil {
		return p.PublishErr
	}
	p.events = append(p.events, event)
	return nil
}

// Events returns all recorded events.
func (p *EventPublisher) Events() []outbound.LifecycleEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]outbound.LifecycleEvent, len(p.events))
	copy(out, p.events)
	return out
}

// EventsOfKind returns recorded events of the given kind.
func (p *EventPublisher) EventsOfKind(kind string) []outbound.LifecycleEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []outbound.LifecycleEvent
	for _, ev := range p.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// Reset clears all recorded events.
func (p *EventPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
