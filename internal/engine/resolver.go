// Package engine resolves free-text mentions to catalog entities.
//
// A Resolver runs an ordered cascade of matchers against one store view:
// the alias glossary, exact slug or name, trigram similarity, and embedding
// similarity. The first tier that produces a candidate wins. A miss is a nil
// result, never an error; every store failure is marked ErrStoreUnavailable.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/scrypster/resolver/internal/logger"
	"github.com/scrypster/resolver/internal/storage"
	"github.com/scrypster/resolver/internal/textsim"
	"github.com/scrypster/resolver/pkg/types"
)

// Resolver runs the glossary → exact → fuzzy → semantic cascade against a
// read-only store. It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	store    storage.Store
	cfg      Config
	matchers []Matcher
	log      *zap.SugaredLogger
	tracer   Tracer
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger. Defaults to logger.Named("resolver").
func WithLogger(l *zap.SugaredLogger) Option {
	return func(r *Resolver) { r.log = l }
}

// WithTracer receives a TraceEvent for every step of every Resolve call.
func WithTracer(t Tracer) Option {
	return func(r *Resolver) { r.tracer = t }
}

// WithMatchers replaces the tier list.
func WithMatchers(m ...Matcher) Option {
	return func(r *Resolver) { r.matchers = m }
}

// NewResolver creates a resolver over store. If store also implements
// storage.Snapshotter, every Resolve call reads from one snapshot.
func NewResolver(store storage.Store, cfg Config, opts ...Option) *Resolver {
	cfg = cfg.withDefaults()
	r := &Resolver{
		store:    store,
		cfg:      cfg,
		matchers: DefaultMatchers(cfg),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Named("resolver")
	}
	return r
}

// Config returns the effective configuration.
func (r *Resolver) Config() Config {
	return r.cfg
}

// Resolve returns the entity req.Mention refers to, or nil when no tier
// matches. Tiers run in order and the first accepted match wins. The only
// errors are store failures, marked ErrStoreUnavailable.
func (r *Resolver) Resolve(ctx context.Context, req types.ResolutionRequest) (*types.ResolutionResult, error) {
	q := NewQuery(req)
	if q.Normalized == "" {
		return nil, nil
	}

	start := time.Now()
	r.trace(EventResolveStarted(q.Mention, q.Scope))

	lookup, release, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	for _, m := range r.matchers {
		tierStart := time.Now()
		result, err := m.TryMatch(ctx, lookup, q)
		if err != nil {
			r.trace(EventTierFailed(m.Source(), err, time.Since(tierStart)))
			r.log.Debugw("resolve failed", "mention", q.Mention, "tier", m.Source(), "error", err)
			return nil, err
		}
		if result != nil {
			r.trace(EventTierMatched(m.Source(), result, time.Since(tierStart)))
			r.finish(q, result, start)
			return result, nil
		}
		r.trace(EventTierMissed(m.Source(), time.Since(tierStart)))
	}

	r.finish(q, nil, start)
	return nil, nil
}

func (r *Resolver) finish(q *Query, result *types.ResolutionResult, start time.Time) {
	elapsed := time.Since(start)
	r.trace(EventResolveFinished(result, elapsed))
	if result == nil {
		r.log.Debugw("resolve: no match", "mention", q.Mention, "scope", q.Scope, "elapsed", elapsed)
		return
	}
	r.log.Debugw("resolve: matched",
		"mention", q.Mention,
		"scope", q.Scope,
		"tier", result.MatchSource,
		"entity_id", result.Entity.ID,
		"confidence", result.Confidence,
		"elapsed", elapsed)
}

// open returns the store view for one Resolve call and its release func.
func (r *Resolver) open(ctx context.Context) (storage.Store, func(), error) {
	snapper, ok := r.store.(storage.Snapshotter)
	if !ok {
		return r.store, func() {}, nil
	}
	snap, err := snapper.Snapshot(ctx)
	if err != nil {
		return nil, nil, storeFailure(err, "open snapshot")
	}
	return snap, func() {
		if err := snap.Close(); err != nil {
			r.log.Warnw("failed to release snapshot", "error", err)
		}
	}, nil
}

func (r *Resolver) trace(e TraceEvent) {
	if r.tracer != nil {
		r.tracer(e)
	}
}

// ResolveSemanticOnly runs Tier 4 alone and returns up to topK ranked
// candidates for disambiguation. threshold outside (0,1] and topK <= 0 fall
// back to the configured defaults. An empty mention or embedding yields an
// empty list.
func (r *Resolver) ResolveSemanticOnly(ctx context.Context, mention string, embedding []float32, scope string, typeFilter []types.EntityType, threshold float64, topK int) ([]types.ScoredEntity, error) {
	if textsim.Normalize(mention) == "" || len(embedding) == 0 {
		return []types.ScoredEntity{}, nil
	}
	if threshold <= 0 || threshold > 1 {
		threshold = r.cfg.SemanticThreshold
	}
	if topK <= 0 {
		topK = r.cfg.SemanticTopK
	}

	candidates, err := vectorSearch(ctx, r.store, embedding, typeFilter, threshold, topK, r.cfg.SemanticTimeout)
	if err != nil {
		return nil, err
	}
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	// The catalog is shared across scopes; scope only tags the log line.
	r.log.Debugw("semantic candidates", "mention", mention, "scope", scope, "count", len(candidates))
	return candidates, nil
}

// FuzzyGlossarySuggest returns aliases visible from scope whose term is
// similar to mention, unresolved ones included, for "did you mean" prompts.
func (r *Resolver) FuzzyGlossarySuggest(ctx context.Context, mention, scope string, threshold float64, topK int) ([]types.ScoredAlias, error) {
	normalized := textsim.Normalize(mention)
	if normalized == "" {
		return []types.ScoredAlias{}, nil
	}
	if threshold <= 0 || threshold > 1 {
		threshold = r.cfg.SuggestThreshold
	}
	if topK <= 0 {
		topK = r.cfg.SuggestTopK
	}

	suggestions, err := r.store.FuzzyAliasSearch(ctx, normalized, scope, threshold, topK)
	if err != nil {
		return nil, storeFailure(err, "glossary: suggest")
	}
	if len(suggestions) > topK {
		suggestions = suggestions[:topK]
	}
	return suggestions, nil
}
