package domain

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

const countrySuffix = ", Portugal"

var (
	// islandRe captures a parenthesized island qualifier, e.g. "(Terceira)".
	islandRe = regexp.MustCompile(`\((.*?)\)`)

	// placeRe captures the reference place after its preposition.
	placeRe = regexp.MustCompile(`(?i)\b(?:de|da|do)\s+(.+)`)

	// offsetRe captures "<km> km a <token>", e.g. "10 km a S-SW".
	offsetRe = regexp.MustCompile(`(\d+)\s*km\s*a\s+([NSEW]+(?:-[NSEW]+)?)`)
)

// Resolution outcomes.
const (
	ResolutionGeocoded  = "geocoded"  // geocoded point used as is
	ResolutionProjected = "projected" // geocoded point offset by distance and bearing
	ResolutionNotFound  = "not_found" // provider had no match for any query
	ResolutionFailed    = "failed"    // provider error or timeout
	ResolutionNoQuery   = "no_query"  // phrase did not yield a query
)

// Resolution is the result of resolving one epicenter phrase.
type Resolution struct {
	Coordinate *Coordinate
	Query      string // query that produced the hit, or the last one attempted
	Outcome    string
}

// LocationResolver turns normalized epicenter phrases into coordinates.
type LocationResolver struct {
	geocoder Geocoder
	logger   *slog.Logger
}

// NewLocationResolver creates a resolver. A nil geocoder disables resolution:
// every phrase resolves to an absent coordinate.
func NewLocationResolver(geocoder Geocoder, logger *slog.Logger) *LocationResolver {
	return &LocationResolver{geocoder: geocoder, logger: logger}
}

// Resolve geocodes the reference place of a normalized phrase and applies the
// "<N> km a <bearing>" offset when present. Provider failures degrade to an
// absent coordinate and are logged; they are never returned.
func (r *LocationResolver) Resolve(ctx context.Context, phrase string) Resolution {
	queries := CandidateQueries(phrase)
	if len(queries) == 0 || r.geocoder == nil {
		return Resolution{Outcome: ResolutionNoQuery}
	}

	res := Resolution{Outcome: ResolutionNotFound}
	for _, q := range queries {
		res.Query = q
		result, err := r.geocoder.Geocode(ctx, q)
		if err != nil {
			r.logger.Warn("geocoding failed", "query", q, "location", phrase, "error", err)
			res.Outcome = ResolutionFailed
			continue
		}
		if !result.Found {
			r.logger.Debug("geocoding found no match", "query", q)
			continue
		}

		origin := Coordinate{Lat: result.Lat, Lon: result.Lon}
		if !origin.Valid() {
			r.logger.Warn("geocoder returned out-of-range coordinate",
				"query", q, "lat", result.Lat, "lon", result.Lon)
			res.Outcome = ResolutionFailed
			continue
		}

		coord, projected := r.applyOffset(origin, phrase)
		res.Coordinate = &coord
		res.Outcome = ResolutionGeocoded
		if projected {
			res.Outcome = ResolutionProjected
		}
		return res
	}

	if res.Outcome == ResolutionNotFound {
		r.logger.Info("location not found", "location", phrase, "query", res.Query)
	}
	return res
}

func (r *LocationResolver) applyOffset(origin Coordinate, phrase string) (Coordinate, bool) {
	distance, token, ok := ParseOffset(phrase)
	if !ok {
		return origin, false
	}
	azimuth, ok := AzimuthFor(token)
	if !ok {
		r.logger.Warn("unrecognized direction, using reference point", "direction", token, "location", phrase)
		return origin, false
	}
	lat, lon := Project(origin.Lat, origin.Lon, distance, azimuth)
	return Coordinate{Lat: lat, Lon: lon}, true
}

// ParseOffset extracts the distance in km and the compass token from a
// phrase such as "10 km a S de Lisboa".
func ParseOffset(phrase string) (float64, string, bool) {
	m := offsetRe.FindStringSubmatch(phrase)
	if len(m) != 3 {
		return 0, "", false
	}
	km, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return float64(km), m[2], true
}

// GeocodingQuery derives the primary geocoding query from a phrase: the
// island qualifier when one is present, otherwise the place after its
// preposition. It returns "" when the phrase has neither shape.
func GeocodingQuery(phrase string) string {
	if m := islandRe.FindStringSubmatch(phrase); len(m) == 2 {
		if island := strings.TrimSpace(m[1]); island != "" {
			return island + countrySuffix
		}
	}
	if place := referencePlace(phrase); place != "" {
		return place + countrySuffix
	}
	return ""
}

// CandidateQueries lists the queries to try, most specific first. For a known
// island the place is qualified with each of the island's municipalities
// before falling back to GeocodingQuery.
func CandidateQueries(phrase string) []string {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return nil
	}

	var queries []string
	if m := islandRe.FindStringSubmatch(phrase); len(m) == 2 {
		place := referencePlace(islandRe.ReplaceAllString(phrase, ""))
		if place != "" {
			for _, municipality := range IslandMunicipalities(m[1]) {
				queries = append(queries, fmt.Sprintf("%s, %s%s", place, municipality, countrySuffix))
			}
		}
	}
	if q := GeocodingQuery(phrase); q != "" {
		queries = append(queries, q)
	}
	return queries
}

func referencePlace(phrase string) string {
	m := placeRe.FindStringSubmatch(phrase)
	if len(m) != 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}
