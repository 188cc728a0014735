package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/scrypster/resolver/pkg/types"
)

// ResolveBatch resolves every mention with tiers 1-3 under the shared scope
// and type filter. The result has one slot per input, in input order,
// duplicates included; a nil slot means no match. At most
// Config.BatchConcurrency mentions are in flight. The first store failure
// cancels the remaining work and is returned.
func (r *Resolver) ResolveBatch(ctx context.Context, mentions []string, scope string, typeFilter []types.EntityType) ([]*types.ResolutionResult, error) {
	results := make([]*types.ResolutionResult, len(mentions))
	if len(mentions) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.BatchConcurrency)

	for i, mention := range mentions {
		g.Go(func() error {
			res, err := r.Resolve(gctx, types.ResolutionRequest{
				Mention:    mention,
				Scope:      scope,
				TypeFilter: typeFilter,
			})
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// SemanticQuery is one Tier-4 request inside ResolveSemanticBatch.
type SemanticQuery struct {
	Mention   string    `json:"mention"`
	Embedding []float32 `json:"embedding"`
}

// ResolveSemanticBatch runs ResolveSemanticOnly for each query with the
// configured threshold and topK, at most Config.SemanticConcurrency at a
// time. This limit is separate from BatchConcurrency so vector scans cannot
// starve the cheaper tiers. Each lookup has its own SemanticTimeout.
// Slots line up with queries; a query without an embedding gets an empty
// list.
func (r *Resolver) ResolveSemanticBatch(ctx context.Context, queries []SemanticQuery, scope string, typeFilter []types.EntityType) ([][]types.ScoredEntity, error) {
	results := make([][]types.ScoredEntity, len(queries))
	if len(queries) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.SemanticConcurrency)

	for i, q := range queries {
		g.Go(func() error {
			candidates, err := r.ResolveSemanticOnly(gctx, q.Mention, q.Embedding, scope, typeFilter, 0, 0)
			if err != nil {
				return err
			}
			results[i] = candidates
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
