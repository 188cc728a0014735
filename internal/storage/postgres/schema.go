// Package postgres provides PostgreSQL implementations of storage interfaces.
package postgres

import "github.com/scrypster/resolver/internal/storage"

// Migrations is the mandatory schema. It requires the pg_trgm extension,
// which NewStore enables first.
var Migrations = []storage.Migration{
	{Version: 1, Name: "catalog_and_glossary", Up: catalogSchema},
}

// VectorMigration creates the embeddings table. It is applied only when the
// vector extension is available and is retried on every start until then.
var VectorMigration = storage.Migration{Version: 2, Name: "entity_embeddings_pgvector", Up: vectorSchema}

const catalogSchema = `
-- Canonical entities
CREATE TABLE IF NOT EXISTS entities (
    id TEXT PRIMARY KEY,
    slug TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    metadata JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);
CREATE INDEX IF NOT EXISTS idx_entities_slug_lower ON entities(lower(btrim(slug)));
CREATE INDEX IF NOT EXISTS idx_entities_name_lower ON entities(lower(btrim(name)));
CREATE INDEX IF NOT EXISTS idx_entities_slug_trgm ON entities USING gin (slug gin_trgm_ops);
CREATE INDEX IF NOT EXISTS idx_entities_name_trgm ON entities USING gin (name gin_trgm_ops);

-- Curated aliases, scoped per tenant. entity_id is NULL for an unresolved term.
CREATE TABLE IF NOT EXISTS glossary_terms (
    id TEXT PRIMARY KEY,
    term TEXT NOT NULL,
    normalized_term TEXT NOT NULL,
    entity_id TEXT REFERENCES entities(id) ON DELETE SET NULL,
    scope TEXT NOT NULL DEFAULT 'public',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_glossary_terms_lookup ON glossary_terms(normalized_term, scope);
CREATE INDEX IF NOT EXISTS idx_glossary_terms_trgm ON glossary_terms USING gin (normalized_term gin_trgm_ops);
`

const vectorSchema = `
CREATE TABLE IF NOT EXISTS entity_embeddings (
    id TEXT PRIMARY KEY,
    entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    document_id TEXT,
    embedding vector NOT NULL,
    model TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_entity_embeddings_entity ON entity_embeddings(entity_id);
`
