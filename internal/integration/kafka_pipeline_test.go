//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkatc "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/quake-bulletin-etl/internal/adapter/feed"
	"github.com/couchcryptid/quake-bulletin-etl/internal/adapter/kafka"
	"github.com/couchcryptid/quake-bulletin-etl/internal/adapter/memory"
	"github.com/couchcryptid/quake-bulletin-etl/internal/domain"
	"github.com/couchcryptid/quake-bulletin-etl/internal/observability"
	"github.com/couchcryptid/quake-bulletin-etl/internal/pipeline"
	"github.com/couchcryptid/quake-bulletin-etl/internal/store"
)

const testTopic = "test-earthquake-events"

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>IPMA - Comunicados</title>
<item>
<title>Sismo - Continente</title>
<description>Sismo de magnitude 3.5 (Richter) registado em 14-10-2026 pelas 03:12 (hora local). O epicentro localizou a cerca de 10 km a Sul de Lisboa. Este sismo teve intensidade máxima III (escala de Mercalli modificada).</description>
<pubDate>Wed, 14 Oct 2026 03:30:00 +0100</pubDate>
</item>
<item>
<title>Aviso meteorológico</title>
<description>Aviso amarelo de agitação marítima.</description>
<pubDate>Tue, 13 Oct 2026 23:00:00 +0100</pubDate>
</item>
<item>
<title>Sismo - Açores</title>
<description>Sismo de magnitude 2.4 (Richter) registado em 13-10-2026 pelas 21:05 (hora local). O epicentro localizou próximo de Sta Bárbara (Terceira).</description>
<pubDate>Tue, 13 Oct 2026 22:10:00 +0000</pubDate>
</item>
</channel>
</rss>`

// publishedMessage holds a deserialized message read from the event topic.
type publishedMessage struct {
	Payload domain.Payload
	Key     string
	Headers map[string]string
}

// readPublished reads a single message from the consumer and deserializes it.
func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from event topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var payload domain.Payload
	require.NoError(t, json.Unmarshal(msg.Value, &payload), "unmarshal event message")

	return publishedMessage{Payload: payload, Key: string(msg.Key), Headers: headers}
}

// TestPipelineEndToEnd wires the full pipeline (feed → extract → resolve →
// CSV store → Kafka) against a real broker and verifies that the appended
// events are published oldest first with their identity headers.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	feedServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		io.WriteString(w, feedXML) //nolint:errcheck // test server
	}))
	t.Cleanup(feedServer.Close)

	gazetteer := memory.NewGazetteer(map[string]domain.Coordinate{
		"Lisboa, Portugal":                         {Lat: 38.7223, Lon: -9.1393},
		"Sta Bárbara, Angra do Heroísmo, Portugal": {Lat: 38.6931, Lon: -27.3361},
	})

	st, err := store.Open(filepath.Join(t.TempDir(), "earthquakes.csv"), store.DefaultRotateBytes, discardLogger())
	require.NoError(t, err)

	writer := kafka.NewWriter([]string{broker}, testTopic, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(
		feed.NewSource(feedServer.URL, 5*time.Second, discardLogger()),
		domain.NewLocationResolver(gazetteer, discardLogger()),
		st,
		discardLogger(),
		metrics,
		pipeline.WithPublisher("kafka", writer),
	)

	report, err := p.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.OutcomeCreated, report.Outcome)
	assert.Equal(t, 2, report.Bulletins)
	assert.Equal(t, 2, report.Added)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	first := readPublished(ctx, t, consumer)
	second := readPublished(ctx, t, consumer)

	// Oldest first: the Terceira bulletin precedes the Lisbon one.
	assert.Equal(t, "próximo de Sta Bárbara (Terceira)", first.Payload.Location)
	require.NotNil(t, first.Payload.Coordinate)
	assert.InDelta(t, 38.6931, first.Payload.Coordinate.Lat, 1e-9)
	assert.Equal(t, domain.NoIntensity, first.Payload.Intensity)

	assert.Equal(t, "10 km a S de Lisboa", second.Payload.Location)
	require.NotNil(t, second.Payload.Coordinate)
	assert.Less(t, second.Payload.Coordinate.Lat, 38.7223)
	assert.Equal(t, "III", second.Payload.Intensity)
	require.NotNil(t, second.Payload.Magnitude)
	assert.InDelta(t, 3.5, *second.Payload.Magnitude, 1e-9)

	for _, m := range []publishedMessage{first, second} {
		assert.Equal(t, domain.EventID(m.Payload.Description), m.Key)
		assert.Equal(t, m.Key, m.Headers["event_id"])
		assert.Equal(t, m.Key, m.Payload.ID)
		assert.NotEmpty(t, m.Payload.Geohash)
		_, err := time.Parse(time.RFC3339, m.Headers["processed_at"])
		assert.NoError(t, err, "processed_at should be valid RFC3339")
	}

	// A second run over the unchanged feed publishes nothing.
	report, err = p.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.OutcomeNoNewData, report.Outcome)

	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no further messages on the event topic")
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	ctr, err := kafkatc.Run(ctx, "confluentinc/confluent-local:7.5.0", kafkatc.WithClusterID("quake-test"))
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start kafka container")

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
