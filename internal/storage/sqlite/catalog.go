package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/scrypster/resolver/internal/storage"
	"github.com/scrypster/resolver/internal/textsim"
	"github.com/scrypster/resolver/pkg/types"
)

// entityColumns is the canonical SELECT list for entities. It must match the
// scan order in scanEntity.
const entityColumns = `e.id, e.slug, e.name, e.type, e.metadata, e.created_at, e.updated_at`

// reader implements the lookup methods on any queryer, so the same code
// serves both the Store and a snapshot transaction.
type reader struct {
	q queryer
}

// FindBySlugOrName returns the entity whose normalized slug or name equals
// normalized. Slug hits rank before name hits.
func (r reader) FindBySlugOrName(ctx context.Context, normalized string, typeFilter []types.EntityType) (*types.Entity, error) {
	if normalized == "" {
		return nil, nil
	}

	typeClause, typeArgs := typeFilterClause("e.type", typeFilter)
	query := `
		SELECT ` + entityColumns + `,
			CASE WHEN resolver_normalize(e.slug) = ? THEN 0 ELSE 1 END AS hit_rank
		FROM entities e
		WHERE (resolver_normalize(e.slug) = ? OR resolver_normalize(e.name) = ?)` + typeClause + `
		ORDER BY hit_rank ASC, e.slug ASC, e.id ASC
		LIMIT 1`

	args := append([]any{normalized, normalized, normalized}, typeArgs...)

	var rank int
	entity, err := scanEntity(r.q.QueryRowContext(ctx, query, args...), &rank)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "sqlite: FindBySlugOrName %q", normalized)
	}
	return entity, nil
}

// FuzzySearch returns entities whose slug or name trigram similarity to
// normalized reaches minSimilarity, best first.
func (r reader) FuzzySearch(ctx context.Context, normalized string, typeFilter []types.EntityType, minSimilarity float64) ([]types.ScoredEntity, error) {
	if normalized == "" {
		return []types.ScoredEntity{}, nil
	}
	minSimilarity = storage.ClampSimilarity(minSimilarity)

	const scoreExpr = `MAX(resolver_similarity(e.slug, ?), resolver_similarity(e.name, ?))`

	typeClause, typeArgs := typeFilterClause("e.type", typeFilter)
	query := `
		SELECT ` + entityColumns + `, ` + scoreExpr + ` AS score
		FROM entities e
		WHERE ` + scoreExpr + ` >= ?` + typeClause + `
		ORDER BY score DESC, e.slug ASC, e.id ASC`

	args := []any{normalized, normalized, normalized, normalized, minSimilarity}
	args = append(args, typeArgs...)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "sqlite: FuzzySearch %q", normalized)
	}
	defer func() { _ = rows.Close() }()

	results := []types.ScoredEntity{}
	for rows.Next() {
		var score float64
		entity, err := scanEntity(rows, &score)
		if err != nil {
			return nil, errors.Wrap(err, "sqlite: FuzzySearch scan")
		}
		results = append(results, types.ScoredEntity{Entity: entity, Similarity: score})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite: FuzzySearch rows")
	}

	// SQL already orders; re-sorting pins the tie-break independent of
	// float formatting in the driver.
	storage.SortScoredEntities(results)
	return results, nil
}

// vectorScanCheckEvery controls how often VectorSearch checks for
// cancellation while scanning embeddings.
const vectorScanCheckEvery = 256

// VectorSearch ranks entities by the best cosine similarity of any of their
// stored vectors to embedding. Vectors are loaded and scored in Go.
func (r reader) VectorSearch(ctx context.Context, embedding []float32, typeFilter []types.EntityType, minSimilarity float64, topK int) ([]types.ScoredEntity, error) {
	if len(embedding) == 0 {
		return []types.ScoredEntity{}, nil
	}
	if topK <= 0 {
		topK = storage.DefaultVectorTopK
	}
	minSimilarity = storage.ClampSimilarity(minSimilarity)

	typeClause, typeArgs := typeFilterClause("e.type", typeFilter)
	query := `
		SELECT ` + entityColumns + `, v.embedding, v.dimension
		FROM entity_embeddings v
		JOIN entities e ON e.id = v.entity_id
		WHERE 1 = 1` + typeClause

	rows, err := r.q.QueryContext(ctx, query, typeArgs...)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: VectorSearch query")
	}
	defer func() { _ = rows.Close() }()

	best := make(map[string]types.ScoredEntity)
	scanned := 0
	for rows.Next() {
		scanned++
		if scanned%vectorScanCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(err, "sqlite: VectorSearch cancelled")
			}
		}

		var blob []byte
		var dim int
		entity, err := scanEntity(rows, &blob, &dim)
		if err != nil {
			return nil, errors.Wrap(err, "sqlite: VectorSearch scan")
		}
		vec, err := decodeVector(blob, dim)
		if err != nil {
			continue
		}
		sim := textsim.Cosine(embedding, vec)
		if sim < minSimilarity {
			continue
		}
		if cur, ok := best[entity.ID]; !ok || sim > cur.Similarity {
			best[entity.ID] = types.ScoredEntity{Entity: entity, Similarity: sim}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite: VectorSearch rows")
	}

	results := make([]types.ScoredEntity, 0, len(best))
	for _, se := range best {
		results = append(results, se)
	}
	storage.SortByEntityID(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// GetEntity returns the entity with id, or nil when absent.
func (r reader) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	if id == "" {
		return nil, nil
	}
	query := `SELECT ` + entityColumns + ` FROM entities e WHERE e.id = ?`
	entity, err := scanEntity(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "sqlite: GetEntity %q", id)
	}
	return entity, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntity scans the entityColumns followed by any extra destinations.
func scanEntity(row rowScanner, extra ...any) (*types.Entity, error) {
	var e types.Entity
	var entityType string
	var metadataJSON sql.NullString

	dest := []any{&e.ID, &e.Slug, &e.Name, &entityType, &metadataJSON, &e.CreatedAt, &e.UpdatedAt}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	e.Type = types.EntityType(entityType)
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &e.Metadata); err != nil {
			return nil, errors.Wrapf(err, "unmarshal metadata for entity %s", e.ID)
		}
	}
	return &e, nil
}

// typeFilterClause renders " AND column IN (?, ...)" for a non-empty filter.
func typeFilterClause(column string, filter []types.EntityType) (string, []any) {
	if len(filter) == 0 {
		return "", nil
	}
	return " AND " + column + " IN (" + placeholders(len(filter)) + ")", stringArgs(types.TypeStrings(filter))
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
