package types

import "time"

// AliasTerm is a curated shorthand ("glossary" entry) mapped to an entity.
// EntityID is nil when the term is known but not yet linked to a target.
type AliasTerm struct {
	ID             string    `json:"id"`
	Term           string    `json:"term"`
	NormalizedTerm string    `json:"normalized_term"`
	EntityID       *string   `json:"entity_id,omitempty"`
	Scope          string    `json:"scope"`
	CreatedAt      time.Time `json:"created_at"`
}

// IsResolved reports whether the alias points at an entity.
func (a *AliasTerm) IsResolved() bool {
	return a.EntityID != nil && *a.EntityID != ""
}

// ScoredAlias pairs an alias with its similarity to a mention.
type ScoredAlias struct {
	Alias      *AliasTerm `json:"alias"`
	Similarity float64    `json:"similarity"`
}
