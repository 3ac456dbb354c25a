package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/couchcryptid/quake-bulletin-etl/internal/adapter/feed"
	kafkaadapter "github.com/couchcryptid/quake-bulletin-etl/internal/adapter/kafka"
	natsadapter "github.com/couchcryptid/quake-bulletin-etl/internal/adapter/nats"
	"github.com/couchcryptid/quake-bulletin-etl/internal/adapter/nominatim"
	"github.com/couchcryptid/quake-bulletin-etl/internal/adapter/postgres"
	s3adapter "github.com/couchcryptid/quake-bulletin-etl/internal/adapter/s3"
	"github.com/couchcryptid/quake-bulletin-etl/internal/config"
	"github.com/couchcryptid/quake-bulletin-etl/internal/domain"
	"github.com/couchcryptid/quake-bulletin-etl/internal/observability"
	"github.com/couchcryptid/quake-bulletin-etl/internal/pipeline"
	"github.com/couchcryptid/quake-bulletin-etl/internal/store"
)

// app holds the wired pipeline and everything that must be closed on exit.
type app struct {
	store    *store.CSVStore
	pipeline *pipeline.Pipeline
	closers  map[string]io.Closer
	logger   *slog.Logger
}

// newApp wires the pipeline from cfg. Optional outputs are enabled only when
// their configuration is present.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*app, error) {
	st, err := store.Open(cfg.DatasetPath, cfg.DatasetRotateBytes, logger)
	if err != nil {
		return nil, err
	}

	var geocoder domain.Geocoder
	if cfg.NominatimEnabled {
		client := nominatim.NewClient(cfg.NominatimURL, cfg.NominatimUserAgent, cfg.NominatimTimeout, cfg.NominatimRate, metrics, logger)
		geocoder = nominatim.NewCachedGeocoder(client, cfg.GeocodeCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("nominatim geocoding enabled", "url", cfg.NominatimURL, "cache_size", cfg.GeocodeCacheSize, "rate", cfg.NominatimRate)
	} else {
		metrics.GeocodeEnabled.Set(0)
		logger.Info("nominatim geocoding disabled")
	}

	a := &app{store: st, closers: make(map[string]io.Closer), logger: logger}
	var opts []pipeline.Option

	if cfg.SinkEnabled() {
		sink, err := postgres.New(cfg.DatabaseURL, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers["postgres"] = sink
		opts = append(opts, pipeline.WithSink("postgres", sink))
		logger.Info("postgres sink enabled")
	}
	if cfg.KafkaEnabled() {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		a.closers["kafka"] = writer
		opts = append(opts, pipeline.WithPublisher("kafka", writer))
		logger.Info("kafka publisher enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	if cfg.NATSEnabled() {
		pub, err := natsadapter.NewPublisher(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers["nats"] = pub
		opts = append(opts, pipeline.WithPublisher("nats", pub))
		logger.Info("nats publisher enabled", "subject", cfg.NATSSubject)
	}
	if cfg.ArchiveEnabled() {
		archiver, err := s3adapter.NewArchiver(ctx, cfg.ArchiveBucket, cfg.ArchivePrefix, cfg.ArchiveRegion, cfg.ArchiveEndpoint, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		opts = append(opts, pipeline.WithArchiver("s3", archiver))
		logger.Info("s3 archive upload enabled", "bucket", cfg.ArchiveBucket, "prefix", cfg.ArchivePrefix)
	}

	source := feed.NewSource(cfg.FeedURL, cfg.FeedTimeout, logger)
	resolver := domain.NewLocationResolver(geocoder, logger)
	a.pipeline = pipeline.New(source, resolver, st, logger, metrics, opts...)
	return a, nil
}

func (a *app) close() {
	for name, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Error("close error", "output", name, "error", err)
		}
	}
}
