package types

// DefaultFuzzyThreshold is the minimum n-gram similarity for a fuzzy candidate.
const DefaultFuzzyThreshold = 0.3

// ResolutionRequest asks the resolver which entity a mention refers to.
type ResolutionRequest struct {
	// Mention is the raw free text, e.g. a name typed in a journal entry.
	Mention string `json:"mention"`

	// Scope is the caller's tenant; aliases in this scope and in the
	// public scope are visible.
	Scope string `json:"scope"`

	// TypeFilter restricts candidates to these entity types. Empty means any.
	TypeFilter []EntityType `json:"type_filter,omitempty"`

	// FuzzyThreshold is the minimum similarity for fuzzy candidates.
	// Values outside (0,1] are replaced by DefaultFuzzyThreshold.
	FuzzyThreshold float64 `json:"fuzzy_threshold,omitempty"`

	// Embedding enables the semantic tier when non-empty.
	Embedding []float32 `json:"embedding,omitempty"`
}

// EffectiveFuzzyThreshold returns the threshold with the default applied.
func (r *ResolutionRequest) EffectiveFuzzyThreshold() float64 {
	if r.FuzzyThreshold <= 0 || r.FuzzyThreshold > 1 {
		return DefaultFuzzyThreshold
	}
	return r.FuzzyThreshold
}

// ResolutionResult is the single entity a mention resolved to.
// A resolution that finds nothing is represented by a nil *ResolutionResult.
type ResolutionResult struct {
	Entity         *Entity        `json:"entity"`
	MatchSource    MatchSource    `json:"match_source"`
	Confidence     float64        `json:"confidence"`
	EntityMetadata map[string]any `json:"entity_metadata,omitempty"`
}

// NewResolutionResult builds a result for entity, copying its metadata.
func NewResolutionResult(entity *Entity, source MatchSource, confidence float64) *ResolutionResult {
	return &ResolutionResult{
		Entity:         entity,
		MatchSource:    source,
		Confidence:     confidence,
		EntityMetadata: entity.CopyMetadata(),
	}
}
