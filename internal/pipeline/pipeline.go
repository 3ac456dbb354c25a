package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-bulletin-etl/internal/domain"
	"github.com/couchcryptid/quake-bulletin-etl/internal/observability"
	"github.com/couchcryptid/quake-bulletin-etl/internal/store"
)

// OutcomeError labels a run aborted by a feed or persistence failure.
const OutcomeError = "error"

// FeedSource reads the current bulletin feed.
type FeedSource interface {
	Fetch(ctx context.Context) ([]domain.BulletinItem, error)
}

// Resolver turns a normalized epicenter phrase into a coordinate.
type Resolver interface {
	Resolve(ctx context.Context, phrase string) domain.Resolution
}

// EventStore is the primary, authoritative dataset.
type EventStore interface {
	Newest() (domain.EarthquakeEvent, bool)
	Contains(description string) bool
	MergeAndPersist(events []domain.EarthquakeEvent) (store.MergeResult, error)
}

// RecordSink mirrors appended events into a secondary store and reports how
// many were inserted.
type RecordSink interface {
	Mirror(ctx context.Context, events []domain.EarthquakeEvent) (int, error)
}

// Publisher forwards appended events to a message transport.
type Publisher interface {
	Publish(ctx context.Context, events []domain.EarthquakeEvent) error
}

// Archiver uploads a rotated-away dataset file and returns its remote key.
type Archiver interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// Report summarizes one run.
type Report struct {
	Outcome     string
	Bulletins   int
	Added       int
	ArchivePath string
	Duration    time.Duration
}

type namedPublisher struct {
	name string
	Publisher
}

// Option configures optional pipeline outputs.
type Option func(*Pipeline)

// WithSink mirrors every appended event into sink.
func WithSink(name string, sink RecordSink) Option {
	return func(p *Pipeline) {
		p.sink = sink
		p.sinkName = name
	}
}

// WithPublisher adds a transport that receives every appended event. The name
// labels its metrics and logs.
func WithPublisher(name string, pub Publisher) Option {
	return func(p *Pipeline) {
		p.publishers = append(p.publishers, namedPublisher{name: name, Publisher: pub})
	}
}

// WithArchiver uploads the archive file produced by a rotation.
func WithArchiver(name string, a Archiver) Option {
	return func(p *Pipeline) {
		p.archiver = a
		p.archiverName = name
	}
}

// WithClock sets the time source for run timing and the scheduler.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// Pipeline orchestrates the fetch-extract-resolve-persist batch run.
type Pipeline struct {
	source   FeedSource
	resolver Resolver
	store    EventStore
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock

	sink         RecordSink
	sinkName     string
	publishers   []namedPublisher
	archiver     Archiver
	archiverName string

	ready atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(source FeedSource, resolver Resolver, st EventStore, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:   source,
		resolver: resolver,
		store:    st,
		logger:   logger,
		metrics:  metrics,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once a run has completed successfully, or an
// error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Ready reports whether at least one run has succeeded.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// RunOnce performs one batch pass: fetch the feed, extract and resolve every
// bulletin not yet persisted, and merge them into the store. Feed and
// persistence failures abort the run; everything after the store commit is
// best-effort.
func (p *Pipeline) RunOnce(ctx context.Context) (Report, error) {
	start := p.clock.Now()
	report, err := p.run(ctx)
	report.Duration = p.clock.Since(start)

	p.metrics.RunDuration.Observe(report.Duration.Seconds())
	if err != nil {
		p.metrics.Runs.WithLabelValues(OutcomeError).Inc()
		return report, err
	}
	p.metrics.Runs.WithLabelValues(report.Outcome).Inc()
	p.ready.Store(true)
	return report, nil
}

func (p *Pipeline) run(ctx context.Context) (Report, error) {
	items, err := p.source.Fetch(ctx)
	if err != nil {
		return Report{Outcome: OutcomeError}, fmt.Errorf("fetch bulletins: %w", err)
	}

	bulletins := seismicBulletins(items)
	report := Report{Outcome: store.OutcomeNoNewData, Bulletins: len(bulletins)}
	p.metrics.BulletinsFetched.Add(float64(len(bulletins)))

	pending := p.pending(bulletins)
	if len(pending) == 0 {
		p.logger.Info("no new data", "bulletins", len(bulletins))
		return report, nil
	}

	events := make([]domain.EarthquakeEvent, 0, len(pending))
	for _, item := range pending {
		events = append(events, p.buildEvent(ctx, item))
	}

	result, err := p.store.MergeAndPersist(events)
	if err != nil {
		return Report{Outcome: OutcomeError, Bulletins: len(bulletins)}, fmt.Errorf("persist dataset: %w", err)
	}
	report.Outcome = result.Outcome
	report.Added = len(result.Added)
	report.ArchivePath = result.ArchivePath
	p.logOutcome(result)

	if len(result.Added) == 0 {
		return report, nil
	}
	p.metrics.EventsAppended.Add(float64(len(result.Added)))
	if result.Outcome == store.OutcomeRotated {
		p.metrics.StoreRotations.Inc()
	}

	p.mirror(ctx, result.Added)
	p.publish(ctx, result.Added)
	p.archive(ctx, result.ArchivePath)
	return report, nil
}

// pending drops bulletins already in the store or repeated in the feed. When
// the feed's newest bulletin is the store's newest nothing is new.
func (p *Pipeline) pending(bulletins []domain.BulletinItem) []domain.BulletinItem {
	if len(bulletins) == 0 {
		return nil
	}
	if newest, ok := p.store.Newest(); ok && newest.Description == bulletins[0].Description {
		return nil
	}

	seen := make(map[string]struct{}, len(bulletins))
	var out []domain.BulletinItem
	for _, item := range bulletins {
		if _, dup := seen[item.Description]; dup {
			continue
		}
		seen[item.Description] = struct{}{}
		if p.store.Contains(item.Description) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// buildEvent extracts the bulletin's fields and resolves its epicenter.
// Misses are logged and counted; the event is always returned.
func (p *Pipeline) buildEvent(ctx context.Context, item domain.BulletinItem) domain.EarthquakeEvent {
	event := domain.NewEvent(item)
	for _, field := range event.Missing() {
		p.metrics.ExtractionMisses.WithLabelValues(field).Inc()
		p.logger.Warn("field not found in bulletin", "field", field, "title", item.Title)
	}

	if event.Location == "" {
		p.metrics.Resolutions.WithLabelValues(domain.ResolutionNoQuery).Inc()
		return event
	}
	res := p.resolver.Resolve(ctx, event.Location)
	p.metrics.Resolutions.WithLabelValues(res.Outcome).Inc()
	event.Coordinate = res.Coordinate
	return event
}

func (p *Pipeline) logOutcome(result store.MergeResult) {
	switch result.Outcome {
	case store.OutcomeCreated:
		p.logger.Info("dataset created", "events", len(result.Added))
	case store.OutcomeAppended:
		p.logger.Info("dataset appended", "events", len(result.Added))
	case store.OutcomeRotated:
		p.logger.Info("dataset rotated and appended", "events", len(result.Added), "archive", result.ArchivePath)
	default:
		p.logger.Info("no new data")
	}
}

func (p *Pipeline) mirror(ctx context.Context, events []domain.EarthquakeEvent) {
	if p.sink == nil {
		return
	}
	inserted, err := p.sink.Mirror(ctx, events)
	if err != nil {
		p.metrics.OutputFailures.WithLabelValues(p.sinkName).Inc()
		p.logger.Error("mirror to sink failed", "sink", p.sinkName, "error", err)
		return
	}
	p.metrics.SinkRecords.WithLabelValues("inserted").Add(float64(inserted))
	p.metrics.SinkRecords.WithLabelValues("skipped").Add(float64(len(events) - inserted))
}

func (p *Pipeline) publish(ctx context.Context, events []domain.EarthquakeEvent) {
	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, events); err != nil {
			p.metrics.OutputFailures.WithLabelValues(pub.name).Inc()
			p.logger.Error("publish events failed", "output", pub.name, "error", err)
			continue
		}
		p.metrics.EventsPublished.WithLabelValues(pub.name).Add(float64(len(events)))
	}
}

func (p *Pipeline) archive(ctx context.Context, path string) {
	if p.archiver == nil || path == "" {
		return
	}
	if _, err := p.archiver.Upload(ctx, path); err != nil {
		p.metrics.OutputFailures.WithLabelValues(p.archiverName).Inc()
		p.logger.Error("archive upload failed", "path", path, "error", err)
	}
}

// Run executes RunOnce immediately and then every interval until the context
// is cancelled. Runs never overlap; a failed run is logged and the next tick
// tries again.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) error {
	p.logger.Info("scheduler started", "interval", interval)
	p.metrics.SchedulerRunning.Set(1)
	defer p.metrics.SchedulerRunning.Set(0)

	ticker := p.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			p.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		}
		if report, err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("scheduler stopping", "reason", ctx.Err())
				return nil
			}
			p.logger.Error("run failed", "error", err)
		} else {
			p.logger.Debug("run finished", "outcome", report.Outcome, "added", report.Added, "duration", report.Duration)
		}

		select {
		case <-ctx.Done():
			p.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}

func seismicBulletins(items []domain.BulletinItem) []domain.BulletinItem {
	out := make([]domain.BulletinItem, 0, len(items))
	for _, item := range items {
		if domain.IsSeismicBulletin(item) {
			out = append(out, item)
		}
	}
	return out
}
