package storage

import "github.com/scrypster/resolver/pkg/types"

// DefaultVectorTopK is used by backends when a vector search asks for topK <= 0.
const DefaultVectorTopK = 3

// DefaultAliasTopK is used by backends when an alias search asks for topK <= 0.
const DefaultAliasTopK = 5

// ClampSimilarity bounds a similarity threshold to [0,1].
func ClampSimilarity(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SortScoredEntities orders by similarity descending, then slug, then id.
// This is the fuzzy-search ordering.
func SortScoredEntities(items []types.ScoredEntity) {
	sortStable(items, func(a, b types.ScoredEntity) int {
		if c := compareDesc(a.Similarity, b.Similarity); c != 0 {
			return c
		}
		if c := compareString(a.Entity.Slug, b.Entity.Slug); c != 0 {
			return c
		}
		return compareString(a.Entity.ID, b.Entity.ID)
	})
}

// SortByEntityID orders by similarity descending, then entity id.
// This is the vector-search ordering.
func SortByEntityID(items []types.ScoredEntity) {
	sortStable(items, func(a, b types.ScoredEntity) int {
		if c := compareDesc(a.Similarity, b.Similarity); c != 0 {
			return c
		}
		return compareString(a.Entity.ID, b.Entity.ID)
	})
}

// SortScoredAliases orders by similarity descending, aliases in scope before
// public ones, then normalized term, then id.
func SortScoredAliases(items []types.ScoredAlias, scope string) {
	sortStable(items, func(a, b types.ScoredAlias) int {
		if c := compareDesc(a.Similarity, b.Similarity); c != 0 {
			return c
		}
		if c := scopeRank(a.Alias, scope) - scopeRank(b.Alias, scope); c != 0 {
			return c
		}
		if c := compareString(a.Alias.NormalizedTerm, b.Alias.NormalizedTerm); c != 0 {
			return c
		}
		return compareString(a.Alias.ID, b.Alias.ID)
	})
}

// scopeRank is 0 for the caller's own scope and 1 otherwise.
func scopeRank(a *types.AliasTerm, scope string) int {
	if a.Scope == scope {
		return 0
	}
	return 1
}

// SortAliasCandidates orders exact-term alias candidates for FindAlias: the
// caller's scope first, then newest created_at, then smallest id.
func SortAliasCandidates(items []*types.AliasTerm, scope string) {
	sortStable(items, func(a, b *types.AliasTerm) int {
		if c := scopeRank(a, scope) - scopeRank(b, scope); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareString(a.ID, b.ID)
	})
}

// VisibleScopes returns the scopes whose aliases a caller in scope can see.
func VisibleScopes(scope string) []string {
	if scope == "" || scope == types.PublicScope {
		return []string{types.PublicScope}
	}
	return []string{scope, types.PublicScope}
}
