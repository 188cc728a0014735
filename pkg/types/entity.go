package types

import (
	"maps"
	"time"
)

// Entity is a canonical catalog record: a person, company, project or concept.
// Entities are owned by external catalog-management processes; the resolver
// only reads them.
type Entity struct {
	ID        string         `json:"id"`                 // Opaque stable identifier
	Slug      string         `json:"slug"`               // Normalized unique short name
	Name      string         `json:"name"`               // Display name
	Type      EntityType     `json:"type"`               // person, company, project, concept, ...
	Metadata  map[string]any `json:"metadata,omitempty"` // Optional key-value data
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// MatchesTypes reports whether the entity passes the given type filter.
// An empty filter admits every entity.
func (e *Entity) MatchesTypes(filter []EntityType) bool {
	if len(filter) == 0 {
		return true
	}
	for _, t := range filter {
		if e.Type == t {
			return true
		}
	}
	return false
}

// CopyMetadata returns a shallow copy of the entity metadata, or nil when the
// entity has none.
func (e *Entity) CopyMetadata() map[string]any {
	if e.Metadata == nil {
		return nil
	}
	return maps.Clone(e.Metadata)
}

// EmbeddingVector is one indexed vector belonging to an entity, typically one
// per reference document. Vectors are maintained by an external indexer.
type EmbeddingVector struct {
	ID         string    `json:"id"`
	EntityID   string    `json:"entity_id"`
	DocumentID string    `json:"document_id,omitempty"`
	Vector     []float32 `json:"vector"`
	Model      string    `json:"model,omitempty"`
}

// ScoredEntity pairs an entity with a similarity score in [0,1].
type ScoredEntity struct {
	Entity     *Entity `json:"entity"`
	Similarity float64 `json:"similarity"`
}
