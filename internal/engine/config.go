package engine

import "time"

// Config tunes the resolution cascade and the batch fan-out.
type Config struct {
	// FuzzyAcceptance is the score a fuzzy candidate must exceed to be
	// returned by the cascade. Default: 0.7
	FuzzyAcceptance float64

	// SemanticThreshold is the minimum cosine similarity for Tier 4.
	// Default: 0.7
	SemanticThreshold float64

	// SemanticTopK is the candidate count for ResolveSemanticOnly.
	// Default: 3
	SemanticTopK int

	// SemanticTimeout bounds each Tier-4 lookup. Zero selects the default;
	// a negative value disables the bound.
	// Default: 2 seconds
	SemanticTimeout time.Duration

	// SuggestThreshold and SuggestTopK are the FuzzyGlossarySuggest defaults.
	// Default: 0.3 and 5
	SuggestThreshold float64
	SuggestTopK      int

	// BatchConcurrency caps parallel Resolve calls inside ResolveBatch.
	// Default: 8
	BatchConcurrency int

	// SemanticConcurrency caps parallel Tier-4 calls inside
	// ResolveSemanticBatch. Default: 4
	SemanticConcurrency int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		FuzzyAcceptance:     0.7,
		SemanticThreshold:   0.7,
		SemanticTopK:        3,
		SemanticTimeout:     2 * time.Second,
		SuggestThreshold:    0.3,
		SuggestTopK:         5,
		BatchConcurrency:    8,
		SemanticConcurrency: 4,
	}
}

// withDefaults fills zero or out-of-range fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FuzzyAcceptance <= 0 || c.FuzzyAcceptance > 1 {
		c.FuzzyAcceptance = d.FuzzyAcceptance
	}
	if c.SemanticThreshold <= 0 || c.SemanticThreshold > 1 {
		c.SemanticThreshold = d.SemanticThreshold
	}
	if c.SemanticTopK <= 0 {
		c.SemanticTopK = d.SemanticTopK
	}
	if c.SemanticTimeout == 0 {
		c.SemanticTimeout = d.SemanticTimeout
	}
	if c.SuggestThreshold <= 0 || c.SuggestThreshold > 1 {
		c.SuggestThreshold = d.SuggestThreshold
	}
	if c.SuggestTopK <= 0 {
		c.SuggestTopK = d.SuggestTopK
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = d.BatchConcurrency
	}
	if c.SemanticConcurrency <= 0 {
		c.SemanticConcurrency = d.SemanticConcurrency
	}
	return c
}
