package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/quake-bulletin-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes appended earthquake events to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for topic on the given brokers.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes events oldest first in a single WriteMessages call. Messages
// are keyed by event ID, so replays of the same bulletin land on one partition.
func (w *Writer) Publish(ctx context.Context, events []domain.EarthquakeEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write kafka messages: %w", err)
	}
	w.logger.Debug("events published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an event payload into a Kafka message.
func serializeToMessage(event domain.EarthquakeEvent) (kafkago.Message, error) {
	payload := event.Payload()
	data, err := json.Marshal(payload)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize earthquake event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(payload.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_id", Value: []byte(payload.ID)},
			{Key: "processed_at", Value: []byte(event.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
