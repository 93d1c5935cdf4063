package core

import "strings"

const (
	CategoryAIAgents    = "Agentes de IA"
	CategoryAdvertising = "Publicidad"
	CategorySoftware    = "Software"
	CategoryServers     = "Servidores"
	CategoryHobby       = "Hobbie"
	CategoryMentoring   = "Mentoria"
)

// CanonicalCategories lists the known categories in form order.
var CanonicalCategories = []string{
	CategoryAIAgents,
	CategoryAdvertising,
	CategorySoftware,
	CategoryServers,
	CategoryHobby,
	CategoryMentoring,
}

// Palette is the chart palette. Categories without an explicit color draw
// from the entries not already reserved.
var Palette = []string{
	"#006FEE",
	"#F54180",
	"#17C964",
	"#F5A524",
	"#9333EA",
	"#06B6D4",
	"#E11D48",
	"#7828C8",
	"#FBBF24",
}

var categoryColors = map[string]string{
	CategoryAIAgents:    "#F54180",
	CategoryAdvertising: "#006FEE",
	CategorySoftware:    "#17C964",
	CategoryServers:     "#9333EA",
	CategoryHobby:       "#F5A524",
	CategoryMentoring:   "#06B6D4",
}

var legacyCategoryAliases = map[string]string{
	"agente":    CategoryAIAgents,
	"agente ia": CategoryAIAgents,
}

// canonicalByKey maps folded spellings to their canonical label.
var canonicalByKey = func() map[string]string {
	m := make(map[string]string, len(CanonicalCategories)+len(legacyCategoryAliases))
	for _, c := range CanonicalCategories {
		m[Fold(c)] = c
	}
	for alias, c := range legacyCategoryAliases {
		m[alias] = c
	}
	return m
}()

// NormalizeCategory collapses legacy spellings and case or accent variants
// of a known category onto its canonical label. Unknown categories are
// returned trimmed but otherwise untouched.
func NormalizeCategory(raw string) string {
	name := strings.TrimSpace(raw)
	if c, ok := canonicalByKey[Fold(name)]; ok {
		return c
	}
	return name
}

// CategoryColor returns the explicit color of a canonical category.
func CategoryColor(category string) (string, bool) {
	c, ok := categoryColors[NormalizeCategory(category)]
	return c, ok
}

// PickColor returns the chart color for category. assigned holds the colors
// already handed out to non-canonical categories, in order. A non-canonical
// category gets the first palette color that is neither reserved nor in
// assigned; once those run out the palette is cycled by len(assigned).
func PickColor(category string, assigned []string) string {
	if c, ok := CategoryColor(category); ok {
		return c
	}
	used := make(map[string]bool, len(assigned))
	for _, c := range assigned {
		used[c] = true
	}
	for _, c := range Palette {
		if !isReservedColor(c) && !used[c] {
			return c
		}
	}
	return Palette[len(assigned)%len(Palette)]
}

func isReservedColor(color string) bool {
	for _, c := range categoryColors {
		if c == color {
			return true
		}
	}
	return false
}
