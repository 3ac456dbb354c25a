// Package nats publishes appended earthquake events to a NATS subject.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/couchcryptid/quake-bulletin-etl/internal/domain"
)

// Publisher publishes JSON event payloads to one subject.
// It implements pipeline.Publisher.
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewPublisher connects to the NATS server at url with automatic reconnection.
func NewPublisher(url, subject string, logger *slog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("quake-bulletin-etl"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &Publisher{conn: nc, subject: subject, logger: logger}, nil
}

// Publish sends one message per event, oldest first, and flushes so the
// batch is on the wire before returning.
func (p *Publisher) Publish(ctx context.Context, events []domain.EarthquakeEvent) error {
	if len(events) == 0 {
		return nil
	}
	for i := len(events) - 1; i >= 0; i-- {
		payload := events[i].Payload()
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshaling event %s: %w", payload.ID, err)
		}
		msg := nats.NewMsg(p.subject)
		msg.Data = data
		msg.Header.Set("Event-Id", payload.ID)
		if err := p.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("publishing event %s: %w", payload.ID, err)
		}
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flushing NATS: %w", err)
	}
	p.logger.Debug("events published", "subject", p.subject, "count", len(events))
	return nil
}

func (p *Publisher) Close() error {
	return p.conn.Drain()
}
