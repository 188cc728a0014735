package postgres

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq"

	"github.com/scrypster/resolver/internal/storage"
	"github.com/scrypster/resolver/pkg/types"
)

const aliasColumns = `g.id, g.term, g.normalized_term, g.entity_id, g.scope, g.created_at`

// FindAlias returns the alias for normalizedTerm visible from scope whose
// target entity exists. The caller's own scope wins, then the newest alias,
// then the smallest id.
func (r reader) FindAlias(ctx context.Context, normalizedTerm, scope string, typeFilter []types.EntityType) (*types.AliasTerm, error) {
	if normalizedTerm == "" {
		return nil, nil
	}

	args := []any{normalizedTerm, pq.Array(storage.VisibleScopes(scope)), scope}
	query := `
		SELECT ` + aliasColumns + `
		FROM glossary_terms g
		JOIN entities e ON e.id = g.entity_id
		WHERE g.entity_id IS NOT NULL
		  AND lower(btrim(g.normalized_term)) = $1
		  AND g.scope = ANY($2)` + typeFilterClause("e.type", typeFilter, &args) + `
		ORDER BY CASE WHEN g.scope = $3 THEN 0 ELSE 1 END,
		         g.created_at DESC, g.id COLLATE "C"
		LIMIT 1`

	alias, err := scanAlias(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "postgres: FindAlias %q", normalizedTerm)
	}
	return alias, nil
}

// FuzzyAliasSearch ranks aliases visible from scope by pg_trgm similarity.
func (r reader) FuzzyAliasSearch(ctx context.Context, normalizedTerm, scope string, minSimilarity float64, topK int) ([]types.ScoredAlias, error) {
	if normalizedTerm == "" {
		return []types.ScoredAlias{}, nil
	}
	if topK <= 0 {
		topK = storage.DefaultAliasTopK
	}

	query := `
		SELECT ` + aliasColumns + `, similarity(g.normalized_term, $1)::float8 AS score
		FROM glossary_terms g
		WHERE g.scope = ANY($2)
		  AND similarity(g.normalized_term, $1) >= $3
		ORDER BY score DESC,
		         CASE WHEN g.scope = $4 THEN 0 ELSE 1 END,
		         g.normalized_term COLLATE "C", g.id COLLATE "C"
		LIMIT $5`

	rows, err := r.q.QueryContext(ctx, query,
		normalizedTerm, pq.Array(storage.VisibleScopes(scope)), storage.ClampSimilarity(minSimilarity), scope, topK)
	if err != nil {
		return nil, errors.Wrapf(err, "postgres: FuzzyAliasSearch %q", normalizedTerm)
	}
	defer rows.Close()

	results := []types.ScoredAlias{}
	for rows.Next() {
		var score float64
		alias, err := scanAlias(rows, &score)
		if err != nil {
			return nil, errors.Wrap(err, "postgres: FuzzyAliasSearch scan")
		}
		results = append(results, types.ScoredAlias{Alias: alias, Similarity: score})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "postgres: FuzzyAliasSearch rows")
	}

	storage.SortScoredAliases(results, scope)
	return results, nil
}

func scanAlias(row rowScanner, extra ...any) (*types.AliasTerm, error) {
	var a types.AliasTerm
	var entityID sql.NullString

	dest := []any{&a.ID, &a.Term, &a.NormalizedTerm, &entityID, &a.Scope, &a.CreatedAt}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if entityID.Valid && entityID.String != "" {
		id := entityID.String
		a.EntityID = &id
	}
	return &a, nil
}
