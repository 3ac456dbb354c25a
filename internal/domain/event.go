package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	geohash "github.com/TomiHiltunen/geohash-golang"
)

// NoIntensity is recorded when a bulletin carries no Mercalli intensity.
const NoIntensity = "Sem info a esta hora"

// BulletinItem is one raw feed entry.
type BulletinItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	PubDate     string `json:"publication_date"` // feed-native, not reparsed
}

// ExtractedFields holds the attributes parsed from a bulletin description.
// Empty strings and a nil Magnitude mean the bulletin did not state the value.
type ExtractedFields struct {
	DateTime  string   `json:"date_time,omitempty"`
	Magnitude *float64 `json:"scale,omitempty"`
	Location  string   `json:"location,omitempty"` // normalized, e.g. "10 km a S de Lisboa"
	Intensity string   `json:"intensity"`          // never empty, see NoIntensity
}

// Coordinate is a WGS-84 latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate lies within the WGS-84 ranges.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// EarthquakeEvent is the persisted unit: the bulletin, its extracted fields,
// and the resolved epicenter (nil when resolution failed).
type EarthquakeEvent struct {
	BulletinItem
	ExtractedFields
	Coordinate *Coordinate `json:"coordinate,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
}

// ID returns the deterministic identifier of the event.
func (e EarthquakeEvent) ID() string {
	return EventID(e.Description)
}

// SameAs reports whether two events describe the same earthquake.
func (e EarthquakeEvent) SameAs(other EarthquakeEvent) bool {
	return e.Description == other.Description
}

// Geohash encodes the resolved epicenter, or returns "" when it is unknown.
func (e EarthquakeEvent) Geohash() string {
	if e.Coordinate == nil {
		return ""
	}
	return geohash.Encode(e.Coordinate.Lat, e.Coordinate.Lon)
}

// Payload is the message published downstream for an event: the event
// itself plus its derived identifier and geohash.
type Payload struct {
	ID string `json:"id"`
	EarthquakeEvent
	Geohash string `json:"geohash,omitempty"`
}

// Payload builds the downstream message for the event.
func (e EarthquakeEvent) Payload() Payload {
	return Payload{ID: e.ID(), EarthquakeEvent: e, Geohash: e.Geohash()}
}

// EventID hashes a bulletin description into a short stable key.
// Identical descriptions always produce the same ID, so replays upsert cleanly.
func EventID(description string) string {
	hash := sha256.Sum256([]byte(description))
	return "quake-" + hex.EncodeToString(hash[:8])
}

// IsSeismicBulletin reports whether a feed item announces an earthquake.
func IsSeismicBulletin(item BulletinItem) bool {
	return strings.Contains(item.Title, "Sismo") || strings.Contains(item.Description, "Sismo")
}
