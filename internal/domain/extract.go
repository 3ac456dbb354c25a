package domain

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	dateTimeRe = regexp.MustCompile(`(\d{2}-\d{2}-\d{4} pelas \d{2}:\d{2} \(hora local\))`)

	magnitudeRe = regexp.MustCompile(`\bmagnitude (\d+(?:[.,]\d+)?) \(Richter\)`)

	// Epicenter phrases, tried in order.
	locationRes = []*regexp.Regexp{
		regexp.MustCompile(`localizou a (cerca de .*?)\.`),
		regexp.MustCompile(`localizou ((?i:próximo) de .*?)\.`),
	}

	// Mercalli intensity, tried in order: a range such as "III/IV" first,
	// then the single "intensidade máxima" value.
	intensityRes = []*regexp.Regexp{
		regexp.MustCompile(`(\w+/\w+) \(escala de Mercalli modificada\)`),
		regexp.MustCompile(`intensidade máxima (\w+) \(escala de Mercalli modificada\)`),
	}
)

// Field names reported by ExtractedFields.Missing.
const (
	FieldDateTime  = "date_time"
	FieldMagnitude = "scale"
	FieldLocation  = "location"
	FieldIntensity = "intensity"
)

// ExtractFields parses the structured attributes out of a bulletin
// description. Values the bulletin does not state are left empty; only the
// intensity has a default (NoIntensity).
func ExtractFields(description string) ExtractedFields {
	fields := ExtractedFields{
		DateTime:  firstSubmatch(description, dateTimeRe),
		Magnitude: parseMagnitude(firstSubmatch(description, magnitudeRe)),
		Location:  NormalizeLocation(firstSubmatch(description, locationRes...)),
		Intensity: firstSubmatch(description, intensityRes...),
	}
	if fields.Intensity == "" {
		fields.Intensity = NoIntensity
	}
	return fields
}

// Missing lists the fields the bulletin did not state. A defaulted intensity
// counts as missing.
func (f ExtractedFields) Missing() []string {
	var missing []string
	if f.DateTime == "" {
		missing = append(missing, FieldDateTime)
	}
	if f.Magnitude == nil {
		missing = append(missing, FieldMagnitude)
	}
	if f.Location == "" {
		missing = append(missing, FieldLocation)
	}
	if f.Intensity == NoIntensity {
		missing = append(missing, FieldIntensity)
	}
	return missing
}

// firstSubmatch returns the first capture group of the first pattern that
// matches, trimmed, or "" when none does.
func firstSubmatch(text string, patterns ...*regexp.Regexp) string {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if len(m) == 2 {
			if v := strings.TrimSpace(m[1]); v != "" {
				return v
			}
		}
	}
	return ""
}

// parseMagnitude accepts "3.5" and the decimal-comma form "3,5".
func parseMagnitude(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil || v < 0 {
		return nil
	}
	return &v
}

// NewEvent builds an unresolved event from a bulletin, stamping ProcessedAt.
func NewEvent(item BulletinItem) EarthquakeEvent {
	return EarthquakeEvent{
		BulletinItem:    item,
		ExtractedFields: ExtractFields(item.Description),
		ProcessedAt:     clock.Now().UTC(),
	}
}
