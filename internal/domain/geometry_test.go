package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAzimuthFor_SixteenPoints(t *testing.T) {
	tokens := []string{
		"N", "N-NE", "NE", "E-NE", "E", "E-SE", "SE", "S-SE",
		"S", "S-SW", "SW", "W-SW", "W", "W-NW", "NW", "N-NW",
	}

	for i, token := range tokens {
		az, ok := AzimuthFor(token)
		assert.True(t, ok, token)
		assert.InDelta(t, float64(i)*22.5, az, 1e-9, token)
		assert.GreaterOrEqual(t, az, 0.0)
		assert.LessOrEqual(t, az, 337.5)
	}
}

func TestAzimuthFor_UnknownTokens(t *testing.T) {
	for _, token := range []string{"", "NNE", "L", "O", "n", "N-", "NE-SW", "Norte"} {
		_, ok := AzimuthFor(token)
		assert.False(t, ok, "token %q", token)
	}
}

// oneDegreeKm is the arc length of one degree on the model sphere.
var oneDegreeKm = EarthRadiusKm * math.Pi / 180

func TestProject_ZeroDistanceReturnsOrigin(t *testing.T) {
	for _, az := range []float64{0, 45, 137.5, 270} {
		lat, lon := Project(38.7223, -9.1393, 0, az)
		assert.InDelta(t, 38.7223, lat, 1e-9)
		assert.InDelta(t, -9.1393, lon, 1e-9)
	}
}

func TestProject_KnownDistances(t *testing.T) {
	tests := []struct {
		name             string
		lat, lon, az     float64
		wantLat, wantLon float64
	}{
		{"north from equator", 0, 0, 0, 1, 0},
		{"east along equator", 0, 0, 90, 0, 1},
		{"south from equator", 0, 0, 180, -1, 0},
		{"west along equator", 0, 0, 270, 0, -1},
		{"east across antimeridian", 0, 179.5, 90, 0, -179.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat, lon := Project(tt.lat, tt.lon, oneDegreeKm, tt.az)
			assert.InDelta(t, tt.wantLat, lat, 1e-6)
			assert.InDelta(t, tt.wantLon, lon, 1e-6)
		})
	}
}

func TestProject_NorthIncreasesLatitudeMonotonically(t *testing.T) {
	prev := 37.0
	for km := 10.0; km <= 5000; km += 10 {
		lat, _ := Project(37.0, -25.5, km, 0)
		assert.Greater(t, lat, prev, "distance %v", km)
		prev = lat
	}
}

func TestProject_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		az   float64
		km   float64
	}{
		{"north", 0, 40},
		{"south-southwest", 202.5, 12},
		{"northeast", 45, 50},
		{"west", 270, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat, lon := Project(38.7, -9.1, tt.km, tt.az)
			backLat, backLon := Project(lat, lon, tt.km, math.Mod(tt.az+180, 360))
			assert.InDelta(t, 38.7, backLat, 0.01)
			assert.InDelta(t, -9.1, backLon, 0.01)
		})
	}
}

func TestProject_StaysInRange(t *testing.T) {
	lat, lon := Project(89.9, 170, 2000, 30)
	c := Coordinate{Lat: lat, Lon: lon}
	assert.True(t, c.Valid(), "got %+v", c)
}

func TestCoordinate_Valid(t *testing.T) {
	assert.True(t, Coordinate{Lat: 90, Lon: -180}.Valid())
	assert.True(t, Coordinate{Lat: 38.7, Lon: -9.1}.Valid())
	assert.False(t, Coordinate{Lat: 90.01, Lon: 0}.Valid())
	assert.False(t, Coordinate{Lat: 0, Lon: 180.5}.Valid())
}
