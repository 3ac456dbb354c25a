package domain

// bearings maps the sixteen compass-point tokens to azimuths in degrees
// clockwise from north. Intermediate points join the two neighbouring
// letters with a hyphen, e.g. "N-NE" is north-northeast.
var bearings = map[string]float64{
	"N":    0,
	"N-NE": 22.5,
	"NE":   45,
	"E-NE": 67.5,
	"E":    90,
	"E-SE": 112.5,
	"SE":   135,
	"S-SE": 157.5,
	"S":    180,
	"S-SW": 202.5,
	"SW":   225,
	"W-SW": 247.5,
	"W":    270,
	"W-NW": 292.5,
	"NW":   315,
	"N-NW": 337.5,
}

// AzimuthFor returns the azimuth for a compass token. The second return value
// is false for unrecognized tokens, in which case no offset should be applied.
func AzimuthFor(token string) (float64, bool) {
	az, ok := bearings[token]
	return az, ok
}
