package outbound

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Lifecycle event kinds.
const (
	EventGroupCreated  = "group_created"
	EventJobTransition = "job_transition"
	EventJobReplaced   = "job_replaced"
)

// LifecycleEvent describes one committed job or group state change. Events
// feed downstream consumers (result sinks, dashboards); publishing is
// best-effort and never blocks orchestration.
type LifecycleEvent struct {
	Kind       string    `json:"kind"`
	GroupID    uuid.UUID `json:"group_id"`
	JobID      uuid.UUID `json:"job_id,omitempty"`
	ReplacedID uuid.UUID `json:"replaced_id,omitempty"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
	ItemCount  int       `json:"item_count,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// EventPublisher publishes lifecycle events to the message bus.
type EventPublisher interface {
	PublishLifecycleEvent(ctx context.Context, event LifecycleEvent) error
}
