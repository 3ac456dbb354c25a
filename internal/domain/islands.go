package domain

import "strings"

// islandMunicipalities lists the municipalities of each Azores and Madeira
// island, in the order the resolver tries them.
var islandMunicipalities = map[string][]string{
	"são miguel":  {"Ponta Delgada", "Ribeira Grande", "Lagoa", "Vila Franca do Campo", "Nordeste", "Povoação"},
	"terceira":    {"Angra do Heroísmo", "Praia da Vitória"},
	"pico":        {"Madalena", "São Roque do Pico", "Lajes do Pico"},
	"faial":       {"Horta"},
	"graciosa":    {"Santa Cruz da Graciosa"},
	"são jorge":   {"Velas", "Calheta"},
	"flores":      {"Santa Cruz das Flores", "Lajes das Flores"},
	"corvo":       {"Vila do Corvo"},
	"santa maria": {"Vila do Porto"},
	"madeira": {
		"Funchal", "Câmara de Lobos", "Machico", "Calheta", "Ponta do Sol",
		"Ribeira Brava", "São Vicente", "Santana", "Porto Moniz", "Santa Cruz",
	},
	"porto santo": {"Porto Santo"},
}

// IslandMunicipalities returns the municipalities of a named island, matched
// case-insensitively, or nil for unknown islands.
func IslandMunicipalities(island string) []string {
	return islandMunicipalities[strings.ToLower(strings.TrimSpace(island))]
}
