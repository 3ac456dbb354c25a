// Package domain models seismic bulletins published by IPMA (Instituto
// Português do Mar e da Atmosfera) and the rules that turn them into
// geolocated earthquake records.
//
// # Data Source
//
// Bulletins ("comunicados") are published as an RSS feed at
// https://www.ipma.pt/resources.www/rss/comunicados.xml. The feed mixes
// seismic bulletins with other notices; an item is a seismic bulletin when
// its title or description contains "Sismo". Each item carries a title, a
// free-text Portuguese description and an RFC 1123 publication date, which is
// kept verbatim.
//
// # Bulletin Conventions
//
// Event time:
//
//	"DD-MM-YYYY pelas HH:MM (hora local)"  →  e.g. "14-10-2026 pelas 03:12 (hora local)"
//	Local (Lisbon, Azores or Madeira) time, stored as written.
//
// Magnitude:
//
//	" magnitude <decimal> (Richter)"  →  e.g. "magnitude 3.5 (Richter)"
//
// Epicenter:
//
//	"localizou a cerca de <N> km a <Direção> de <Lugar>."
//	"localizou próximo de <Lugar> (<Ilha>)."
//	Directions are Portuguese words (Norte, Sul, Este, Oeste, Nordeste,
//	Noroeste, Sudeste, Sudoeste) and hyphenated compounds such as
//	"Norte-Nordeste". They are rewritten to English letter tokens
//	("N", "S", "E", "W", "N-NE", ...) by [NormalizeLocation].
//	An island qualifier in parentheses (e.g. "(Terceira)") names the Azores or
//	Madeira island the reference place belongs to.
//
// Intensity:
//
//	"<I>/<II> (escala de Mercalli modificada)" or
//	"intensidade máxima <I> (escala de Mercalli modificada)".
//	When neither form appears the bulletin predates the intensity survey and
//	the intensity is recorded as [NoIntensity].
//
// # Location Resolution
//
// The reference place is geocoded and, when the bulletin states an offset
// ("10 km a S"), the epicenter is projected from the reference point along
// the bearing using the spherical direct geodesic formula (see [Project]).
//
// # Identity
//
// Two records describe the same earthquake iff their description text is
// identical. [EventID] hashes the description for downstream consumers that
// need a compact key.
package domain
