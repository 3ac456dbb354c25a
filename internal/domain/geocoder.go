package domain

import "context"

// GeocodingResult is a geocoding provider's answer for one query.
// Found is false when the provider had no match; Lat/Lon are then zero.
type GeocodingResult struct {
	Lat         float64
	Lon         float64
	DisplayName string
	Found       bool
}

// Geocoder resolves a free-text place query to coordinates.
// A miss is reported as Found=false with a nil error; errors are reserved for
// transport failures, timeouts and provider errors.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (GeocodingResult, error)
}
