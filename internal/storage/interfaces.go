// Package storage defines the read-only contracts the resolver consumes from
// the entity catalog and the alias glossary.
//
// The interfaces are small and focused so a backend can implement them
// independently and the engine can be tested against fakes. Every lookup
// takes a context and must honour its deadline. "Not found" is never an
// error: single lookups return (nil, nil) and searches return an empty slice.
package storage

import (
	"context"

	"github.com/scrypster/resolver/pkg/types"
)

// CatalogStore exposes canonical entities by slug/name, by n-gram similarity
// and by embedding similarity.
type CatalogStore interface {
	// FindBySlugOrName returns the entity whose slug or normalized name equals
	// normalized and whose type passes typeFilter. A slug hit is preferred to
	// a name hit; remaining ties go to the smallest slug, then id.
	FindBySlugOrName(ctx context.Context, normalized string, typeFilter []types.EntityType) (*types.Entity, error)

	// FuzzySearch returns every entity whose slug or name similarity to
	// normalized is at least minSimilarity. Similarity is
	// max(slugSimilarity, nameSimilarity). Results are ordered by similarity
	// descending, then slug ascending, then id ascending.
	FuzzySearch(ctx context.Context, normalized string, typeFilter []types.EntityType, minSimilarity float64) ([]types.ScoredEntity, error)

	// VectorSearch scores each stored vector of an eligible entity by cosine
	// similarity to embedding and keeps every entity's best vector. Entities
	// scoring at least minSimilarity are returned, ordered by similarity
	// descending then entity id ascending, truncated to topK.
	VectorSearch(ctx context.Context, embedding []float32, typeFilter []types.EntityType, minSimilarity float64, topK int) ([]types.ScoredEntity, error)
}

// AliasStore exposes curated term→entity aliases, scoped by tenant.
type AliasStore interface {
	// FindAlias returns the alias whose normalized term equals normalizedTerm
	// in scope or the public scope. Only aliases with an existing target
	// entity qualify, and when typeFilter is non-empty that entity must pass
	// it. The caller's scope wins over public; then the newest alias; then
	// the smallest id.
	FindAlias(ctx context.Context, normalizedTerm, scope string, typeFilter []types.EntityType) (*types.AliasTerm, error)

	// FuzzyAliasSearch ranks aliases visible to scope by n-gram similarity of
	// their normalized term to normalizedTerm. Results are ordered by
	// similarity descending, caller scope first, normalized term ascending,
	// id ascending, truncated to topK.
	FuzzyAliasSearch(ctx context.Context, normalizedTerm, scope string, minSimilarity float64, topK int) ([]types.ScoredAlias, error)

	// GetEntity returns the entity with the given id, or nil if it does not
	// exist. Used to materialize an alias target.
	GetEntity(ctx context.Context, id string) (*types.Entity, error)
}

// Store is a backend that serves both the catalog and the glossary.
type Store interface {
	CatalogStore
	AliasStore
}

// Snapshot is a read-only view of a Store that stays consistent until it is
// closed. Close must always be called.
type Snapshot interface {
	Store
	Close() error
}

// Snapshotter is implemented by stores able to pin a consistent view across
// several lookups, typically with a read-only transaction.
type Snapshotter interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}
