package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/resolver/internal/storage/sqlite"
	"github.com/scrypster/resolver/internal/storage/storagetest"
	"github.com/scrypster/resolver/pkg/types"
)

func catalogFixtures() storagetest.Fixtures {
	return storagetest.Fixtures{
		Entities: []types.Entity{
			{ID: "E1", Slug: "acme-corp", Name: "Acme Corporation", Type: types.EntityTypeCompany, Metadata: map[string]any{"hq": "Springfield"}},
			{ID: "E2", Slug: "jane-doe", Name: "Jane Doe", Type: types.EntityTypePerson},
			{ID: "E3", Slug: "acme", Name: "Project Acme", Type: types.EntityTypeProject},
			{ID: "E4", Slug: "doe-jane", Name: "jane doe", Type: types.EntityTypePerson},
			{ID: "E5", Slug: "project-acme", Name: "Skunk Works", Type: types.EntityTypeConcept},
			{ID: "E6", Slug: "aaa-project", Name: "Project-Acme", Type: types.EntityTypeConcept},
		},
		Aliases: []types.AliasTerm{
			{ID: "A1", Term: "ACME", EntityID: storagetest.StrPtr("E1"), Scope: types.PublicScope},
			{ID: "A2", Term: "acme", EntityID: storagetest.StrPtr("E3"), Scope: "tenant-a"},
			{ID: "A3", Term: "JD", EntityID: storagetest.StrPtr("E2"), Scope: types.PublicScope, CreatedAt: storagetest.BaseTime},
			{ID: "A4", Term: "jd", EntityID: storagetest.StrPtr("E4"), Scope: types.PublicScope, CreatedAt: storagetest.BaseTime.Add(time.Hour)},
			{ID: "A5", Term: "skunkworks", Scope: "tenant-a"},
			{ID: "A6", Term: "acme labs", EntityID: storagetest.StrPtr("E1"), Scope: "tenant-b"},
		},
		Vectors: []types.EmbeddingVector{
			{ID: "V1", EntityID: "E1", DocumentID: "d1", Vector: []float32{1, 0, 0}},
			{ID: "V2", EntityID: "E1", DocumentID: "d2", Vector: []float32{0, 1, 0}},
			{ID: "V3", EntityID: "E2", DocumentID: "d3", Vector: []float32{0.9, 0.1, 0}},
			{ID: "V4", EntityID: "E3", DocumentID: "d4", Vector: []float32{0, 0, 1}},
		},
	}
}

func TestNewStore_InMemory(t *testing.T) {
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(context.Background()))
	assert.NotNil(t, store.GetDB())
}

func TestFindBySlugOrName(t *testing.T) {
	store := storagetest.NewSQLiteStore(t, catalogFixtures())
	ctx := context.Background()

	t.Run("slug hit", func(t *testing.T) {
		e, err := store.FindBySlugOrName(ctx, "acme-corp", nil)
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, "E1", e.ID)
		assert.Equal(t, "Springfield", e.Metadata["hq"])
	})

	t.Run("name hit is case folded", func(t *testing.T) {
		e, err := store.FindBySlugOrName(ctx, "acme corporation", nil)
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, "E1", e.ID)
	})

	t.Run("slug beats name", func(t *testing.T) {
		// E5's slug and E6's name are both "project-acme"; E6 has the
		// smaller slug but only a name hit.
		e, err := store.FindBySlugOrName(ctx, "project-acme", nil)
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, "E5", e.ID)

		e, err = store.FindBySlugOrName(ctx, "project acme", nil)
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, "E3", e.ID)
	})

	t.Run("name collision breaks by slug", func(t *testing.T) {
		// E2 and E4 share the folded name "jane doe".
		e, err := store.FindBySlugOrName(ctx, "jane doe", nil)
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, "E4", e.ID, "doe-jane sorts before jane-doe")
	})

	t.Run("type filter", func(t *testing.T) {
		e, err := store.FindBySlugOrName(ctx, "acme-corp", []types.EntityType{types.EntityTypePerson})
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("unknown type", func(t *testing.T) {
		e, err := store.FindBySlugOrName(ctx, "acme-corp", []types.EntityType{"spaceship"})
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("miss", func(t *testing.T) {
		e, err := store.FindBySlugOrName(ctx, "nobody", nil)
		require.NoError(t, err)
		assert.Nil(t, e)
	})
}

func TestFuzzySearch(t *testing.T) {
	store := storagetest.NewSQLiteStore(t, catalogFixtures())
	ctx := context.Background()

	results, err := store.FuzzySearch(ctx, "acme corp", nil, 0.3)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "E1", results[0].Entity.ID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9, "hyphen is a word separator")

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
		assert.GreaterOrEqual(t, results[i].Similarity, 0.3)
	}

	t.Run("threshold excludes weak candidates", func(t *testing.T) {
		// "ac" shares two of three trigrams with "acme" (1/3) and fewer with
		// everything else.
		results, err := store.FuzzySearch(ctx, "ac", nil, 0.4)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("type filter", func(t *testing.T) {
		results, err := store.FuzzySearch(ctx, "acme corp", []types.EntityType{types.EntityTypeProject}, 0.3)
		require.NoError(t, err)
		for _, r := range results {
			assert.Equal(t, types.EntityTypeProject, r.Entity.Type)
		}
	})

	t.Run("ties break by slug", func(t *testing.T) {
		results, err := store.FuzzySearch(ctx, "jane doe", nil, 0.3)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, 1.0, results[0].Similarity)
		assert.Equal(t, 1.0, results[1].Similarity)
		assert.Equal(t, "doe-jane", results[0].Entity.Slug)
		assert.Equal(t, "jane-doe", results[1].Entity.Slug)
	})
}

func TestVectorSearch(t *testing.T) {
	store := storagetest.NewSQLiteStore(t, catalogFixtures())
	ctx := context.Background()

	t.Run("best vector per entity", func(t *testing.T) {
		results, err := store.VectorSearch(ctx, []float32{0, 1, 0}, nil, 0.7, 3)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "E1", results[0].Entity.ID)
		assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
	})

	t.Run("ranked and truncated", func(t *testing.T) {
		results, err := store.VectorSearch(ctx, []float32{1, 0, 0}, nil, 0.0, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "E1", results[0].Entity.ID)
	})

	t.Run("threshold", func(t *testing.T) {
		results, err := store.VectorSearch(ctx, []float32{1, 0, 0}, nil, 0.7, 10)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "E1", results[0].Entity.ID)
		assert.Equal(t, "E2", results[1].Entity.ID)
	})

	t.Run("type filter", func(t *testing.T) {
		results, err := store.VectorSearch(ctx, []float32{1, 0, 0}, []types.EntityType{types.EntityTypePerson}, 0.7, 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "E2", results[0].Entity.ID)
	})

	t.Run("empty embedding", func(t *testing.T) {
		results, err := store.VectorSearch(ctx, nil, nil, 0.7, 3)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("dimension mismatch never matches", func(t *testing.T) {
		results, err := store.VectorSearch(ctx, []float32{1, 0}, nil, 0.1, 3)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestVectorSearch_CancelledContext(t *testing.T) {
	store := storagetest.NewSQLiteStore(t, catalogFixtures())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.VectorSearch(ctx, []float32{1, 0, 0}, nil, 0.7, 3)
	assert.Error(t, err)
}

func TestFindAlias(t *testing.T) {
	store := storagetest.NewSQLiteStore(t, catalogFixtures())
	ctx := context.Background()

	t.Run("public alias", func(t *testing.T) {
		a, err := store.FindAlias(ctx, "acme", "tenant-z", nil)
		require.NoError(t, err)
		require.NotNil(t, a)
		assert.Equal(t, "A1", a.ID)
		assert.Equal(t, "E1", *a.EntityID)
	})

	t.Run("own scope beats public", func(t *testing.T) {
		a, err := store.FindAlias(ctx, "acme", "tenant-a", nil)
		require.NoError(t, err)
		require.NotNil(t, a)
		assert.Equal(t, "A2", a.ID)
	})

	t.Run("newest wins within a scope", func(t *testing.T) {
		a, err := store.FindAlias(ctx, "jd", "tenant-a", nil)
		require.NoError(t, err)
		require.NotNil(t, a)
		assert.Equal(t, "A4", a.ID)
	})

	t.Run("type filter applies to target", func(t *testing.T) {
		a, err := store.FindAlias(ctx, "acme", "tenant-a", []types.EntityType{types.EntityTypeCompany})
		require.NoError(t, err)
		require.NotNil(t, a)
		assert.Equal(t, "A1", a.ID)
	})

	t.Run("other tenant invisible", func(t *testing.T) {
		a, err := store.FindAlias(ctx, "acme labs", "tenant-a", nil)
		require.NoError(t, err)
		assert.Nil(t, a)
	})

	t.Run("unresolved alias is skipped", func(t *testing.T) {
		a, err := store.FindAlias(ctx, "skunkworks", "tenant-a", nil)
		require.NoError(t, err)
		assert.Nil(t, a)
	})
}

func TestFindAlias_UnresolvedOwnScopeDoesNotHidePublic(t *testing.T) {
	fixtures := catalogFixtures()
	fixtures.Aliases = append(fixtures.Aliases,
		types.AliasTerm{ID: "A7", Term: "acme", Scope: "tenant-c", CreatedAt: storagetest.BaseTime.Add(time.Hour)})
	store := storagetest.NewSQLiteStore(t, fixtures)
	ctx := context.Background()

	a, err := store.FindAlias(ctx, "acme", "tenant-c", nil)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "A1", a.ID)

	// Same answer with a filter, which always required a typed target.
	a, err = store.FindAlias(ctx, "acme", "tenant-c", []types.EntityType{types.EntityTypeCompany})
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "A1", a.ID)

	suggestions, err := store.FuzzyAliasSearch(ctx, "acme", "tenant-c", 0.9, 5)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "A7", suggestions[0].Alias.ID, "unresolved aliases stay visible to suggestions")
}

func TestFuzzyAliasSearch(t *testing.T) {
	store := storagetest.NewSQLiteStore(t, catalogFixtures())
	ctx := context.Background()

	results, err := store.FuzzyAliasSearch(ctx, "acme", "tenant-a", 0.3, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Identical scores: tenant-a's own alias ranks before the public one.
	assert.Equal(t, "A2", results[0].Alias.ID)
	assert.Equal(t, "A1", results[1].Alias.ID)
	assert.Equal(t, 1.0, results[0].Similarity)

	t.Run("topK", func(t *testing.T) {
		results, err := store.FuzzyAliasSearch(ctx, "acme", "tenant-a", 0.3, 1)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("other tenant sees its own alias", func(t *testing.T) {
		results, err := store.FuzzyAliasSearch(ctx, "acme", "tenant-b", 0.3, 5)
		require.NoError(t, err)
		ids := make([]string, len(results))
		for i, r := range results {
			ids[i] = r.Alias.ID
		}
		assert.Equal(t, []string{"A1", "A6"}, ids)
	})
}

func TestGetEntity(t *testing.T) {
	store := storagetest.NewSQLiteStore(t, catalogFixtures())
	ctx := context.Background()

	e, err := store.GetEntity(ctx, "E2")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "Jane Doe", e.Name)
	assert.Equal(t, types.EntityTypePerson, e.Type)

	e, err = store.GetEntity(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestSnapshot(t *testing.T) {
	store := storagetest.NewSQLiteStore(t, catalogFixtures())
	ctx := context.Background()

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)

	e, err := snap.FindBySlugOrName(ctx, "acme-corp", nil)
	require.NoError(t, err)
	require.NotNil(t, e)

	require.NoError(t, snap.Close())
	require.NoError(t, snap.Close(), "second close is a no-op")

	// The single connection must be released for the store to keep working.
	e, err = store.FindBySlugOrName(ctx, "acme-corp", nil)
	require.NoError(t, err)
	assert.NotNil(t, e)
}
