package postgres_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"testing"
	"time"

	pgvector "github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/resolver/internal/storage/postgres"
	"github.com/scrypster/resolver/internal/textsim"
	"github.com/scrypster/resolver/pkg/types"
)

// postgresTestDSN returns the DSN for the test database.
// If POSTGRES_TEST_DSN is not set, tests are skipped.
func postgresTestDSN(t *testing.T) string {
	t.Helper()

	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set; skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore connects to the test database, empties the catalog and seeds
// the Acme fixtures.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()

	store, err := postgres.NewStore(postgresTestDSN(t))
	require.NoError(t, err, "NewStore should succeed")
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.TruncateForTest(ctx))
	seed(t, store)
	return store
}

func seed(t *testing.T, store *postgres.Store) {
	t.Helper()
	db := store.GetDB()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	insertEntity := func(id, slug, name string, typ types.EntityType, meta map[string]any) {
		raw, err := json.Marshal(meta)
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO entities (id, slug, name, type, metadata, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)`, id, slug, name, string(typ), raw, base)
		require.NoError(t, err)
	}
	insertAlias := func(id, term string, entityID *string, scope string, created time.Time) {
		_, err := db.Exec(`INSERT INTO glossary_terms (id, term, normalized_term, entity_id, scope, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`, id, term, textsim.Normalize(term), nullable(entityID), scope, created)
		require.NoError(t, err)
	}

	insertEntity("E1", "acme-corp", "Acme Corporation", types.EntityTypeCompany, map[string]any{"industry": "manufacturing"})
	insertEntity("E2", "jane-doe", "Jane Doe", types.EntityTypePerson, nil)
	insertEntity("E3", "acme", "Project Acme", types.EntityTypeProject, nil)

	e1, e3 := "E1", "E3"
	insertAlias("A1", "acme", &e1, types.PublicScope, base)
	insertAlias("A2", "acme", &e3, "tenant-a", base)
	insertAlias("A3", "skunkworks", nil, "tenant-a", base)
	insertAlias("A4", "acme", nil, "tenant-b", base.Add(time.Hour))

	_, err := db.Exec(`INSERT INTO glossary_terms (id, term, normalized_term, entity_id, scope, created_at)
		VALUES ('A5', 'Jane', ' Jane ', 'E2', 'public', $1)`, base)
	require.NoError(t, err)

	if store.VectorsAvailable() {
		insertVector := func(id, entityID string, v []float32) {
			_, err := db.Exec(`INSERT INTO entity_embeddings (id, entity_id, document_id, embedding, model)
				VALUES ($1, $2, $3, $4, 'test')`, id, entityID, "doc-"+id, pgvector.NewVector(v))
			require.NoError(t, err)
		}
		insertVector("V1", "E1", []float32{1, 0, 0})
		insertVector("V2", "E1", []float32{0, 1, 0})
		insertVector("V3", "E2", []float32{0.9, 0.1, 0})
	}
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func TestFindBySlugOrName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e, err := store.FindBySlugOrName(ctx, "acme-corp", nil)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "E1", e.ID)
	assert.Equal(t, "manufacturing", e.Metadata["industry"])

	e, err = store.FindBySlugOrName(ctx, "jane doe", []types.EntityType{types.EntityTypePerson})
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "E2", e.ID)

	e, err = store.FindBySlugOrName(ctx, "jane doe", []types.EntityType{types.EntityTypeCompany})
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestFuzzySearch(t *testing.T) {
	store := newTestStore(t)

	results, err := store.FuzzySearch(context.Background(), "acme corp", nil, 0.3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "E1", results[0].Entity.ID)
	assert.Greater(t, results[0].Similarity, 0.7)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
	}
}

func TestVectorSearch(t *testing.T) {
	store := newTestStore(t)
	if !store.VectorsAvailable() {
		t.Skip("pgvector not installed")
	}
	ctx := context.Background()

	results, err := store.VectorSearch(ctx, []float32{0, 1, 0}, nil, 0.7, 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "E1", results[0].Entity.ID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)

	results, err = store.VectorSearch(ctx, []float32{1, 0, 0}, nil, 0.7, 3)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "E1", results[0].Entity.ID)
	assert.Equal(t, "E2", results[1].Entity.ID)
}

func TestFindAlias(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.FindAlias(ctx, "acme", "tenant-a", nil)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "A2", a.ID)

	// tenant-b owns an unresolved "acme"; the public alias still answers.
	a, err = store.FindAlias(ctx, "acme", "tenant-b", nil)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "A1", a.ID)

	a, err = store.FindAlias(ctx, "skunkworks", "tenant-a", nil)
	require.NoError(t, err)
	assert.Nil(t, a)

	// Stored terms are compared normalized.
	a, err = store.FindAlias(ctx, "jane", "tenant-z", nil)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "A5", a.ID)
}

func TestFuzzyAliasSearch(t *testing.T) {
	store := newTestStore(t)

	results, err := store.FuzzyAliasSearch(context.Background(), "acme", "tenant-a", 0.3, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "A2", results[0].Alias.ID)
	assert.Equal(t, "A1", results[1].Alias.ID)
}

func TestSnapshot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)

	e, err := snap.GetEntity(ctx, "E1")
	require.NoError(t, err)
	require.NotNil(t, e)

	require.NoError(t, snap.Close())
	require.NoError(t, snap.Close())
}
