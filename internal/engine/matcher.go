package engine

import (
	"context"
	"time"

	"github.com/scrypster/resolver/internal/storage"
	"github.com/scrypster/resolver/internal/textsim"
	"github.com/scrypster/resolver/pkg/types"
)

// Confidence assigned by the deterministic tiers.
const (
	GlossaryConfidence = 1.0
	ExactConfidence    = 0.95
)

// Query is a normalized resolution request as seen by the matchers.
type Query struct {
	Mention        string
	Normalized     string
	Scope          string
	TypeFilter     []types.EntityType
	FuzzyThreshold float64
	Embedding      []float32
}

// NewQuery normalizes req.
func NewQuery(req types.ResolutionRequest) *Query {
	return &Query{
		Mention:        req.Mention,
		Normalized:     textsim.Normalize(req.Mention),
		Scope:          req.Scope,
		TypeFilter:     req.TypeFilter,
		FuzzyThreshold: req.EffectiveFuzzyThreshold(),
		Embedding:      req.Embedding,
	}
}

// Matcher is one tier of the cascade. TryMatch returns (nil, nil) when the
// tier has no answer and the cascade should continue. A non-nil error is
// always a store failure.
type Matcher interface {
	Source() types.MatchSource
	TryMatch(ctx context.Context, lookup storage.Store, q *Query) (*types.ResolutionResult, error)
}

// GlossaryMatcher resolves curated aliases in the caller's scope or the
// public scope.
type GlossaryMatcher struct{}

func (GlossaryMatcher) Source() types.MatchSource { return types.MatchSourceGlossary }

func (GlossaryMatcher) TryMatch(ctx context.Context, lookup storage.Store, q *Query) (*types.ResolutionResult, error) {
	alias, err := lookup.FindAlias(ctx, q.Normalized, q.Scope, q.TypeFilter)
	if err != nil {
		return nil, storeFailure(err, "glossary: find alias")
	}
	if alias == nil || !alias.IsResolved() {
		return nil, nil
	}

	entity, err := lookup.GetEntity(ctx, *alias.EntityID)
	if err != nil {
		return nil, storeFailure(err, "glossary: load alias target")
	}
	// A dangling target or one outside the filter cannot answer.
	if entity == nil || !entity.MatchesTypes(q.TypeFilter) {
		return nil, nil
	}
	return types.NewResolutionResult(entity, types.MatchSourceGlossary, GlossaryConfidence), nil
}

// ExactMatcher compares the mention with entity slugs and names.
type ExactMatcher struct{}

func (ExactMatcher) Source() types.MatchSource { return types.MatchSourceExact }

func (ExactMatcher) TryMatch(ctx context.Context, lookup storage.Store, q *Query) (*types.ResolutionResult, error) {
	entity, err := lookup.FindBySlugOrName(ctx, q.Normalized, q.TypeFilter)
	if err != nil {
		return nil, storeFailure(err, "exact: find by slug or name")
	}
	if entity == nil {
		return nil, nil
	}
	return types.NewResolutionResult(entity, types.MatchSourceExact, ExactConfidence), nil
}

// FuzzyMatcher takes the best n-gram candidate and accepts it only when its
// score exceeds Acceptance. Lower-scoring candidates are dropped silently;
// FuzzyGlossarySuggest and ResolveSemanticOnly serve disambiguation.
type FuzzyMatcher struct {
	Acceptance float64
}

func (FuzzyMatcher) Source() types.MatchSource { return types.MatchSourceFuzzy }

func (m FuzzyMatcher) TryMatch(ctx context.Context, lookup storage.Store, q *Query) (*types.ResolutionResult, error) {
	candidates, err := lookup.FuzzySearch(ctx, q.Normalized, q.TypeFilter, q.FuzzyThreshold)
	if err != nil {
		return nil, storeFailure(err, "fuzzy: search")
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	best := candidates[0]
	if best.Similarity <= m.Acceptance {
		return nil, nil
	}
	return types.NewResolutionResult(best.Entity, types.MatchSourceFuzzy, best.Similarity), nil
}

// SemanticMatcher ranks entities by embedding similarity. It is skipped when
// the query carries no embedding.
type SemanticMatcher struct {
	Threshold float64
	Timeout   time.Duration
}

func (SemanticMatcher) Source() types.MatchSource { return types.MatchSourceSemantic }

func (m SemanticMatcher) TryMatch(ctx context.Context, lookup storage.Store, q *Query) (*types.ResolutionResult, error) {
	if len(q.Embedding) == 0 {
		return nil, nil
	}
	candidates, err := vectorSearch(ctx, lookup, q.Embedding, q.TypeFilter, m.Threshold, 1, m.Timeout)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	best := candidates[0]
	return types.NewResolutionResult(best.Entity, types.MatchSourceSemantic, best.Similarity), nil
}

// vectorSearch runs one Tier-4 lookup under its own deadline.
func vectorSearch(ctx context.Context, lookup storage.Store, embedding []float32, typeFilter []types.EntityType, threshold float64, topK int, timeout time.Duration) ([]types.ScoredEntity, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	candidates, err := lookup.VectorSearch(ctx, embedding, typeFilter, threshold, topK)
	if err != nil {
		return nil, storeFailure(err, "semantic: vector search")
	}
	return candidates, nil
}

// DefaultMatchers returns the four tiers in cascade order.
func DefaultMatchers(cfg Config) []Matcher {
	cfg = cfg.withDefaults()
	return []Matcher{
		GlossaryMatcher{},
		ExactMatcher{},
		FuzzyMatcher{Acceptance: cfg.FuzzyAcceptance},
		SemanticMatcher{Threshold: cfg.SemanticThreshold, Timeout: cfg.SemanticTimeout},
	}
}
