// Package storagetest provides fixture loading for tests that need a real
// catalog. It writes rows directly with SQL; production code never writes.
package storagetest

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scrypster/resolver/internal/storage/sqlite"
	"github.com/scrypster/resolver/internal/textsim"
	"github.com/scrypster/resolver/pkg/types"
)

// Fixtures is a catalog snapshot to load into a test database.
type Fixtures struct {
	Entities []types.Entity
	Aliases  []types.AliasTerm
	Vectors  []types.EmbeddingVector
}

// BaseTime is the created_at used for fixtures that leave it zero.
var BaseTime = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// NewSQLiteStore opens an in-memory SQLite store, loads fixtures and
// registers cleanup.
func NewSQLiteStore(t *testing.T, fixtures Fixtures) *sqlite.Store {
	t.Helper()

	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err, "failed to create in-memory SQLite store")
	t.Cleanup(func() { _ = store.Close() })

	Load(t, store.GetDB(), fixtures)
	return store
}

// Load inserts fixtures into db.
func Load(t *testing.T, db *sql.DB, fixtures Fixtures) {
	t.Helper()

	for _, e := range fixtures.Entities {
		InsertEntity(t, db, e)
	}
	for _, a := range fixtures.Aliases {
		InsertAlias(t, db, a)
	}
	for _, v := range fixtures.Vectors {
		InsertVector(t, db, v)
	}
}

// InsertEntity writes a single entity row.
func InsertEntity(t *testing.T, db *sql.DB, e types.Entity) {
	t.Helper()

	var metadata any
	if e.Metadata != nil {
		raw, err := json.Marshal(e.Metadata)
		require.NoError(t, err)
		metadata = string(raw)
	}
	created := orBase(e.CreatedAt)
	updated := e.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	_, err := db.Exec(`
		INSERT INTO entities (id, slug, name, type, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Slug, e.Name, string(e.Type), metadata, created, updated)
	require.NoError(t, err, "insert entity %s", e.ID)
}

// InsertAlias writes a single glossary row. NormalizedTerm defaults to the
// normalized Term.
func InsertAlias(t *testing.T, db *sql.DB, a types.AliasTerm) {
	t.Helper()

	normalized := a.NormalizedTerm
	if normalized == "" {
		normalized = textsim.Normalize(a.Term)
	}
	var entityID any
	if a.EntityID != nil {
		entityID = *a.EntityID
	}

	_, err := db.Exec(`
		INSERT INTO glossary_terms (id, term, normalized_term, entity_id, scope, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Term, normalized, entityID, a.Scope, orBase(a.CreatedAt))
	require.NoError(t, err, "insert alias %s", a.ID)
}

// InsertVector writes a single embedding row.
func InsertVector(t *testing.T, db *sql.DB, v types.EmbeddingVector) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO entity_embeddings (id, entity_id, document_id, embedding, dimension, model)
		VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.EntityID, v.DocumentID, sqlite.EncodeVector(v.Vector), len(v.Vector), v.Model)
	require.NoError(t, err, "insert vector %s", v.ID)
}

// StrPtr returns a pointer to s, for AliasTerm.EntityID literals.
func StrPtr(s string) *string {
	return &s
}

func orBase(t time.Time) time.Time {
	if t.IsZero() {
		return BaseTime
	}
	return t.UTC()
}
