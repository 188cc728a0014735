package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/scrypster/resolver/internal/storage"
	"github.com/scrypster/resolver/pkg/types"
)

const entityColumns = `e.id, e.slug, e.name, e.type, e.metadata, e.created_at, e.updated_at`

// reader runs the lookups against a pool or a read transaction.
type reader struct {
	q       queryer
	vectors bool
}

// FindBySlugOrName returns the entity whose trimmed, lower-cased slug or name
// equals normalized. Slug hits rank before name hits.
func (r reader) FindBySlugOrName(ctx context.Context, normalized string, typeFilter []types.EntityType) (*types.Entity, error) {
	if normalized == "" {
		return nil, nil
	}

	args := []any{normalized}
	query := `
		SELECT ` + entityColumns + `
		FROM entities e
		WHERE (lower(btrim(e.slug)) = $1 OR lower(btrim(e.name)) = $1)` + typeFilterClause("e.type", typeFilter, &args) + `
		ORDER BY CASE WHEN lower(btrim(e.slug)) = $1 THEN 0 ELSE 1 END,
		         e.slug COLLATE "C", e.id COLLATE "C"
		LIMIT 1`

	entity, err := scanEntity(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "postgres: FindBySlugOrName %q", normalized)
	}
	return entity, nil
}

// FuzzySearch ranks entities by pg_trgm similarity of slug or name.
func (r reader) FuzzySearch(ctx context.Context, normalized string, typeFilter []types.EntityType, minSimilarity float64) ([]types.ScoredEntity, error) {
	if normalized == "" {
		return []types.ScoredEntity{}, nil
	}

	args := []any{normalized, storage.ClampSimilarity(minSimilarity)}
	query := `
		SELECT ` + entityColumns + `, s.score
		FROM entities e
		CROSS JOIN LATERAL (
			SELECT GREATEST(similarity(e.slug, $1), similarity(e.name, $1))::float8 AS score
		) s
		WHERE s.score >= $2` + typeFilterClause("e.type", typeFilter, &args) + `
		ORDER BY s.score DESC, e.slug COLLATE "C", e.id COLLATE "C"`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "postgres: FuzzySearch %q", normalized)
	}
	defer rows.Close()

	results := []types.ScoredEntity{}
	for rows.Next() {
		var score float64
		entity, err := scanEntity(rows, &score)
		if err != nil {
			return nil, errors.Wrap(err, "postgres: FuzzySearch scan")
		}
		results = append(results, types.ScoredEntity{Entity: entity, Similarity: score})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "postgres: FuzzySearch rows")
	}

	storage.SortScoredEntities(results)
	return results, nil
}

// VectorSearch uses pgvector cosine distance (<=>). Each entity keeps its
// closest vector; similarity is 1 - distance. Without pgvector it returns an
// empty list.
func (r reader) VectorSearch(ctx context.Context, embedding []float32, typeFilter []types.EntityType, minSimilarity float64, topK int) ([]types.ScoredEntity, error) {
	if len(embedding) == 0 || !r.vectors {
		return []types.ScoredEntity{}, nil
	}
	if topK <= 0 {
		topK = storage.DefaultVectorTopK
	}

	args := []any{pgvector.NewVector(embedding), len(embedding), storage.ClampSimilarity(minSimilarity), topK}
	typeClause := typeFilterClause("e.type", typeFilter, &args)
	query := `
		SELECT ` + entityColumns + `, best.score
		FROM (
			SELECT DISTINCT ON (v.entity_id)
				v.entity_id, (1 - (v.embedding <=> $1::vector))::float8 AS score
			FROM entity_embeddings v
			WHERE vector_dims(v.embedding) = $2
			ORDER BY v.entity_id, v.embedding <=> $1::vector
		) best
		JOIN entities e ON e.id = best.entity_id
		WHERE best.score >= $3` + typeClause + `
		ORDER BY best.score DESC, e.id COLLATE "C"
		LIMIT $4`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: VectorSearch query")
	}
	defer rows.Close()

	results := []types.ScoredEntity{}
	for rows.Next() {
		var score float64
		entity, err := scanEntity(rows, &score)
		if err != nil {
			return nil, errors.Wrap(err, "postgres: VectorSearch scan")
		}
		results = append(results, types.ScoredEntity{Entity: entity, Similarity: score})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "postgres: VectorSearch rows")
	}

	storage.SortByEntityID(results)
	return results, nil
}

// GetEntity returns the entity with id, or nil when absent.
func (r reader) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	if id == "" {
		return nil, nil
	}
	query := `SELECT ` + entityColumns + ` FROM entities e WHERE e.id = $1`
	entity, err := scanEntity(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "postgres: GetEntity %q", id)
	}
	return entity, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner, extra ...any) (*types.Entity, error) {
	var e types.Entity
	var entityType string
	var metadataJSON []byte

	dest := []any{&e.ID, &e.Slug, &e.Name, &entityType, &metadataJSON, &e.CreatedAt, &e.UpdatedAt}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	e.Type = types.EntityType(entityType)
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
			return nil, errors.Wrapf(err, "unmarshal metadata for entity %s", e.ID)
		}
	}
	return &e, nil
}

// typeFilterClause appends the filter to args and returns
// " AND column = ANY($n)", or "" for an empty filter.
func typeFilterClause(column string, filter []types.EntityType, args *[]any) string {
	if len(filter) == 0 {
		return ""
	}
	*args = append(*args, pq.Array(types.TypeStrings(filter)))
	return " AND " + column + " = ANY($" + strconv.Itoa(len(*args)) + ")"
}
