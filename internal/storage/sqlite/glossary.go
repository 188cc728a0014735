package sqlite

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"

	"github.com/scrypster/resolver/internal/storage"
	"github.com/scrypster/resolver/pkg/types"
)

// aliasColumns must match the scan order in scanAlias.
const aliasColumns = `g.id, g.term, g.normalized_term, g.entity_id, g.scope, g.created_at`

// FindAlias returns the alias for normalizedTerm visible from scope. Only
// aliases whose target entity exists are considered.
func (r reader) FindAlias(ctx context.Context, normalizedTerm, scope string, typeFilter []types.EntityType) (*types.AliasTerm, error) {
	if normalizedTerm == "" {
		return nil, nil
	}

	scopes := storage.VisibleScopes(scope)
	typeClause, typeArgs := typeFilterClause("e.type", typeFilter)
	query := `
		SELECT ` + aliasColumns + `
		FROM glossary_terms g
		JOIN entities e ON e.id = g.entity_id
		WHERE g.entity_id IS NOT NULL
		  AND resolver_normalize(g.normalized_term) = ?
		  AND g.scope IN (` + placeholders(len(scopes)) + `)` + typeClause

	args := []any{normalizedTerm}
	args = append(args, stringArgs(scopes)...)
	args = append(args, typeArgs...)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "sqlite: FindAlias %q", normalizedTerm)
	}
	defer func() { _ = rows.Close() }()

	var candidates []*types.AliasTerm
	for rows.Next() {
		alias, err := scanAlias(rows)
		if err != nil {
			return nil, errors.Wrap(err, "sqlite: FindAlias scan")
		}
		candidates = append(candidates, alias)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite: FindAlias rows")
	}

	if len(candidates) == 0 {
		return nil, nil
	}
	storage.SortAliasCandidates(candidates, scope)
	return candidates[0], nil
}

// FuzzyAliasSearch ranks aliases visible from scope by trigram similarity.
func (r reader) FuzzyAliasSearch(ctx context.Context, normalizedTerm, scope string, minSimilarity float64, topK int) ([]types.ScoredAlias, error) {
	if normalizedTerm == "" {
		return []types.ScoredAlias{}, nil
	}
	if topK <= 0 {
		topK = storage.DefaultAliasTopK
	}
	minSimilarity = storage.ClampSimilarity(minSimilarity)

	scopes := storage.VisibleScopes(scope)
	query := `
		SELECT ` + aliasColumns + `, resolver_similarity(g.normalized_term, ?) AS score
		FROM glossary_terms g
		WHERE resolver_similarity(g.normalized_term, ?) >= ?
		  AND g.scope IN (` + placeholders(len(scopes)) + `)`

	args := []any{normalizedTerm, normalizedTerm, minSimilarity}
	args = append(args, stringArgs(scopes)...)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "sqlite: FuzzyAliasSearch %q", normalizedTerm)
	}
	defer func() { _ = rows.Close() }()

	results := []types.ScoredAlias{}
	for rows.Next() {
		var score float64
		alias, err := scanAlias(rows, &score)
		if err != nil {
			return nil, errors.Wrap(err, "sqlite: FuzzyAliasSearch scan")
		}
		results = append(results, types.ScoredAlias{Alias: alias, Similarity: score})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite: FuzzyAliasSearch rows")
	}

	storage.SortScoredAliases(results, scope)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// scanAlias scans aliasColumns followed by any extra destinations.
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
