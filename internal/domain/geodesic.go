package domain

import "math"

// EarthRadiusKm is the mean Earth radius used by the spherical model.
const EarthRadiusKm = 6371.0

// Project solves the direct geodesic problem on a sphere: starting at
// (lat, lon), travel distanceKm along the initial bearing azimuthDeg and
// return the destination. Longitude is wrapped into [-180, 180].
func Project(lat, lon, distanceKm, azimuthDeg float64) (float64, float64) {
	latR := degToRad(lat)
	lonR := degToRad(lon)
	azR := degToRad(azimuthDeg)
	delta := distanceKm / EarthRadiusKm

	newLat := math.Asin(math.Sin(latR)*math.Cos(delta) +
		math.Cos(latR)*math.Sin(delta)*math.Cos(azR))
	newLon := lonR + math.Atan2(
		math.Sin(azR)*math.Sin(delta)*math.Cos(latR),
		math.Cos(delta)-math.Sin(latR)*math.Sin(newLat),
	)

	return radToDeg(newLat), wrapLongitude(radToDeg(newLon))
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }

func radToDeg(r float64) float64 { return r * 180 / math.Pi }

func wrapLongitude(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}
