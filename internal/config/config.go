package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// DefaultFeedURL is IPMA's public bulletin feed.
const DefaultFeedURL = "https://www.ipma.pt/resources.www/rss/comunicados.xml"

// Config holds all service settings, populated from environment variables.
type Config struct {
	FeedURL     string
	FeedTimeout time.Duration

	DatasetPath        string
	DatasetRotateBytes int64

	// Nominatim geocoding configuration.
	NominatimEnabled   bool
	NominatimURL       string
	NominatimUserAgent string
	NominatimTimeout   time.Duration
	NominatimRate      float64 // requests per second
	GeocodeCacheSize   int

	// Optional secondary outputs; each is disabled when its location is unset.
	DatabaseURL     string
	KafkaBrokers    []string
	KafkaTopic      string
	NATSURL         string
	NATSSubject     string
	ArchiveBucket   string
	ArchiveRegion   string
	ArchiveEndpoint string
	ArchivePrefix   string

	HTTPAddr        string
	RunInterval     time.Duration
	LatestLimit     int
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	feedTimeout, err := parseDuration("FEED_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	nominatimTimeout, err := parseDuration("NOMINATIM_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	runInterval, err := parseDuration("RUN_INTERVAL", "10m")
	if err != nil {
		return nil, err
	}

	rotateBytes, err := strconv.ParseInt(sharedcfg.EnvOrDefault("DATASET_ROTATE_BYTES", strconv.Itoa(50<<20)), 10, 64)
	if err != nil || rotateBytes < 0 {
		return nil, errors.New("invalid DATASET_ROTATE_BYTES")
	}

	rate, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("NOMINATIM_RATE", "1"), 64)
	if err != nil || rate <= 0 {
		return nil, errors.New("invalid NOMINATIM_RATE")
	}

	latestLimit, err := strconv.Atoi(sharedcfg.EnvOrDefault("LATEST_LIMIT", "50"))
	if err != nil || latestLimit <= 0 {
		return nil, errors.New("invalid LATEST_LIMIT")
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		FeedURL:     sharedcfg.EnvOrDefault("FEED_URL", DefaultFeedURL),
		FeedTimeout: feedTimeout,

		DatasetPath:        sharedcfg.EnvOrDefault("DATASET_PATH", "data/earthquakes.csv"),
		DatasetRotateBytes: rotateBytes,

		NominatimEnabled:   os.Getenv("NOMINATIM_ENABLED") != "false",
		NominatimURL:       sharedcfg.EnvOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		NominatimUserAgent: sharedcfg.EnvOrDefault("NOMINATIM_USER_AGENT", "AterraTreme"),
		NominatimTimeout:   nominatimTimeout,
		NominatimRate:      rate,
		GeocodeCacheSize:   parseCacheSize(),

		DatabaseURL:     os.Getenv("DATABASE_URL"),
		KafkaBrokers:    brokers,
		KafkaTopic:      sharedcfg.EnvOrDefault("KAFKA_TOPIC", "earthquake-events"),
		NATSURL:         os.Getenv("NATS_URL"),
		NATSSubject:     sharedcfg.EnvOrDefault("NATS_SUBJECT", "quake.events"),
		ArchiveBucket:   os.Getenv("ARCHIVE_S3_BUCKET"),
		ArchiveRegion:   sharedcfg.EnvOrDefault("ARCHIVE_S3_REGION", "eu-west-1"),
		ArchiveEndpoint: os.Getenv("ARCHIVE_S3_ENDPOINT"),
		ArchivePrefix:   sharedcfg.EnvOrDefault("ARCHIVE_S3_PREFIX", "archives/"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		RunInterval:     runInterval,
		LatestLimit:     latestLimit,
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if u, err := url.Parse(c.FeedURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("FEED_URL must be an absolute http(s) URL")
	}
	if c.DatasetPath == "" {
		return errors.New("DATASET_PATH is required")
	}
	if c.NominatimEnabled && c.NominatimUserAgent == "" {
		return errors.New("NOMINATIM_USER_AGENT is required when geocoding is enabled")
	}
	if c.KafkaEnabled() && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if c.NATSEnabled() && c.NATSSubject == "" {
		return errors.New("NATS_SUBJECT is required when NATS_URL is set")
	}
	return nil
}

// SinkEnabled reports whether events are mirrored into Postgres.
func (c *Config) SinkEnabled() bool { return c.DatabaseURL != "" }

// KafkaEnabled reports whether events are published to Kafka.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// NATSEnabled reports whether events are published to NATS.
func (c *Config) NATSEnabled() bool { return c.NATSURL != "" }

// ArchiveEnabled reports whether rotated datasets are uploaded to S3.
func (c *Config) ArchiveEnabled() bool { return c.ArchiveBucket != "" }

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseCacheSize() int {
	if s := os.Getenv("GEOCODE_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
