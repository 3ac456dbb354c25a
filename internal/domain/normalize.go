package domain

import (
	"regexp"
	"strings"
)

var (
	// approxRe matches the "approximately" filler that precedes offsets.
	approxRe = regexp.MustCompile(`(?i)\bcerca de\s+`)

	// directionWordRe matches Portuguese compass words. Compound names are
	// listed first so "Nordeste" is never read as "Norte".
	directionWordRe = regexp.MustCompile(`\b(Nordeste|Noroeste|Sudeste|Sudoeste|Norte|Sul|Este|Oeste)\b`)

	// danglingDeRe matches "a de" left behind when a direction word was
	// dropped between the two prepositions.
	danglingDeRe = regexp.MustCompile(`\s+a de\s+`)
)

var directionAbbrev = map[string]string{
	"Norte":    "N",
	"Sul":      "S",
	"Este":     "E",
	"Oeste":    "W",
	"Nordeste": "NE",
	"Noroeste": "NW",
	"Sudeste":  "SE",
	"Sudoeste": "SW",
}

// NormalizeLocation rewrites a raw epicenter phrase into its canonical form:
// the "cerca de" filler is removed, Portuguese compass words become letter
// tokens ("Norte-Nordeste" → "N-NE") and "a de" collapses to a single space.
// Words directly after "de", "da" or "do" are place names (the municipality
// of Nordeste, for one) and are left alone. An empty phrase stays empty.
//
// The rewrite is applied until it reaches a fixed point, so normalizing an
// already normalized phrase returns it unchanged.
func NormalizeLocation(raw string) string {
	s := strings.TrimSpace(raw)
	for {
		next := normalizePass(s)
		if next == s {
			return s
		}
		s = next
	}
}

// normalizePass never lengthens its input, which bounds the fixed-point loop.
func normalizePass(s string) string {
	s = approxRe.ReplaceAllString(s, "")
	s = replaceDirectionWords(s)
	s = danglingDeRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func replaceDirectionWords(s string) string {
	matches := directionWordRe.FindAllStringIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		// After de/da/do the word names a place ("de Nordeste" is the Azores
		// municipality), so it is kept as written.
		if isPlaceNamePosition(s[:start]) {
			continue
		}
		b.WriteString(s[last:start])
		b.WriteString(directionAbbrev[s[start:end]])
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}

func isPlaceNamePosition(prefix string) bool {
	for _, prep := range []string{"de ", "da ", "do "} {
		if prefix == prep || strings.HasSuffix(prefix, " "+prep) {
			return true
		}
	}
	return false
}
