// Package memory provides in-process Geocoder and sink implementations for
// tests and offline runs.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/couchcryptid/quake-bulletin-etl/internal/domain"
)

// Gazetteer is a Geocoder answering from a fixed table of query → coordinate.
// Lookups ignore case and surrounding whitespace.
type Gazetteer struct {
	mu      sync.Mutex
	places  map[string]domain.Coordinate
	queries []string
}

// NewGazetteer creates a Gazetteer from places keyed by query.
func NewGazetteer(places map[string]domain.Coordinate) *Gazetteer {
	g := &Gazetteer{places: make(map[string]domain.Coordinate, len(places))}
	for q, c := range places {
		g.places[normalizeQuery(q)] = c
	}
	return g
}

func (g *Gazetteer) Geocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.GeocodingResult{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.queries = append(g.queries, query)
	c, ok := g.places[normalizeQuery(query)]
	if !ok {
		return domain.GeocodingResult{}, nil
	}
	return domain.GeocodingResult{Lat: c.Lat, Lon: c.Lon, DisplayName: query, Found: true}, nil
}

// Queries returns every query received, in order.
func (g *Gazetteer) Queries() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.queries...)
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// Sink collects mirrored events with the same description dedup as the
// relational sink.
type Sink struct {
	mu     sync.Mutex
	events []domain.EarthquakeEvent // insertion order, oldest first
}

// NewSink creates an empty Sink.
func NewSink() *Sink {
	return &Sink{}
}

// Mirror appends events (given newest first) oldest first, skipping any whose
// description is already held. It returns the number inserted.
func (s *Sink) Mirror(ctx context.Context, events []domain.EarthquakeEvent) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for i := len(events) - 1; i >= 0; i-- {
		if s.containsLocked(events[i].Description) {
			continue
		}
		s.events = append(s.events, events[i])
		inserted++
	}
	return inserted, nil
}

func (s *Sink) containsLocked(description string) bool {
	for _, e := range s.events {
		if e.Description == description {
			return true
		}
	}
	return false
}

// Events returns the held events in insertion order.
func (s *Sink) Events() []domain.EarthquakeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.EarthquakeEvent(nil), s.events...)
}
