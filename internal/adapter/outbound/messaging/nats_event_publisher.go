// Package messaging provides the NATS JetStream implementation of the
// lifecycle event publisher.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"batchflow/internal/application/common/slogger"
	"batchflow/internal/config"
	"batchflow/internal/port/outbound"

	"github.com/nats-io/nats.go"
)

const (
	streamName     = "BATCHFLOW_EVENTS"
	subjectPrefix  = "batchflow.events"
	streamMaxAge   = 24 * time.Hour
	connectTimeout = 5 * time.Second
)

// NATSEventPublisher publishes lifecycle events to a JetStream stream.
// Publishing is best-effort from the orchestrator's point of view: callers
// log failures and move on.
type NATSEventPublisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewNATSEventPublisher connects to NATS and ensures the event stream exists.
func NewNATSEventPublisher(cfg config.NATSConfig) (*NATSEventPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("NATS URL cannot be empty")
	}
	if !strings.HasPrefix(cfg.URL, "nats://") {
		return nil, errors.New("invalid NATS URL scheme")
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Timeout(connectTimeout),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	publisher := &NATSEventPublisher{conn: conn, js: js}
	if err := publisher.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}
	return publisher, nil
}

func (p *NATSEventPublisher) ensureStream() error {
	_, err := p.js.StreamInfo(streamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", streamName, err)
	}

	_, err = p.js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{subjectPrefix + ".>"},
		MaxAge:   streamMaxAge,
		Storage:  nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", streamName, err)
	}
	return nil
}

// PublishLifecycleEvent implements outbound.EventPublisher.
func (p *NATSEventPublisher) PublishLifecycleEvent(ctx context.Context, event outbound.LifecycleEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal lifecycle event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", subjectPrefix, event.Kind)
	if _, err := p.js.Publish(subject, payload, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish lifecycle event: %w", err)
	}

	slogger.Debug(ctx, "Published lifecycle event", slogger.Fields3(
		"kind", event.Kind,
		"group_id", event.GroupID.String(),
		"subject", subject,
	))
	return nil
}

// Close drains the underlying connection.
func (p *NATSEventPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
