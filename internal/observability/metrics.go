package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quake_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the bulletin pipeline.
type Metrics struct {
	Runs             *prometheus.CounterVec // labels: outcome={created,appended,rotated,no_new_data,error}
	RunDuration      prometheus.Histogram
	SchedulerRunning prometheus.Gauge

	BulletinsFetched prometheus.Counter
	EventsAppended   prometheus.Counter
	ExtractionMisses *prometheus.CounterVec // labels: field={date_time,scale,location,intensity}
	StoreRotations   prometheus.Counter

	// Location resolution metrics.
	Resolutions        *prometheus.CounterVec // labels: outcome={geocoded,projected,not_found,failed,no_query}
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge

	// Secondary outputs.
	SinkRecords     *prometheus.CounterVec // labels: result={inserted,skipped}
	OutputFailures  *prometheus.CounterVec // labels: output={postgres,kafka,nats,s3}
	EventsPublished *prometheus.CounterVec // labels: output={kafka,nats}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can
// build as many as they like without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-extract-resolve-persist run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 while the periodic scheduler is active, 0 when shut down.",
		}),
		BulletinsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulletins_fetched_total",
			Help:      "Seismic bulletins read from the feed.",
		}),
		EventsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_appended_total",
			Help:      "Events committed to the dataset.",
		}),
		ExtractionMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_misses_total",
			Help:      "Bulletin fields that could not be extracted, by field.",
		}, []string{"field"}),
		StoreRotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_rotations_total",
			Help:      "Times the primary dataset was archived past the size threshold.",
		}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_resolutions_total",
			Help:      "Epicenter resolutions by outcome.",
		}, []string{"outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Nominatim API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when geocoding is enabled, 0 otherwise.",
		}),
		SinkRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_records_total",
			Help:      "Relational sink records by result.",
		}, []string{"result"}),
		OutputFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_failures_total",
			Help:      "Failed writes to secondary outputs, by output.",
		}, []string{"output"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events published to message brokers, by output.",
		}, []string{"output"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Runs,
		m.RunDuration,
		m.SchedulerRunning,
		m.BulletinsFetched,
		m.EventsAppended,
		m.ExtractionMisses,
		m.StoreRotations,
		m.Resolutions,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
		m.SinkRecords,
		m.OutputFailures,
		m.EventsPublished,
	}
}
