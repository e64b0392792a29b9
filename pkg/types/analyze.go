// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// CategoryHit records how strongly one prejudice category matched the
// incident description (keyword occurrence count, not a semantic score).
type CategoryHit struct {
	Category string `json:"category"`
	Matches  int    `json:"matches"`
}

// Analysis is the keyword-heuristic reading of an incident description. It
// supplies the query keywords and the category tags used for the static
// compensation estimate; it makes no natural-language-understanding claims.
type Analysis struct {
	Keywords   []string      `json:"keywords"`
	Strategy   string        `json:"strategy"`
	Categories []CategoryHit `json:"categories"`
	Summary    string        `json:"summary"`
}

// Range is a compensation band in euros taken from the static reference
// tables.
type Range struct {
	Min    int    `json:"min"`
	Max    int    `json:"max"`
	Unit   string `json:"unit"`
	Source string `json:"source"`
}

// Estimation aggregates the per-category compensation bands and their sum.
type Estimation struct {
	PerCategory map[string]Range `json:"per_category"`
	Total       Range            `json:"total"`
}
