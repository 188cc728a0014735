package sqlite

import "github.com/scrypster/resolver/internal/storage"

// Migrations create the catalog, glossary and embedding tables when they are
// missing. The resolver never writes rows; the tables are populated by the
// catalog-management and indexing processes that own them.
var Migrations = []storage.Migration{
	{Version: 1, Name: "catalog_and_glossary", Up: catalogSchema},
	{Version: 2, Name: "entity_embeddings", Up: embeddingSchema},
}

const catalogSchema = `
CREATE TABLE IF NOT EXISTS entities (
    id TEXT PRIMARY KEY,
    slug TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    metadata TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);
CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);

CREATE TABLE IF NOT EXISTS glossary_terms (
    id TEXT PRIMARY KEY,
    term TEXT NOT NULL,
    normalized_term TEXT NOT NULL,
    entity_id TEXT REFERENCES entities(id) ON DELETE SET NULL,
    scope TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_glossary_terms_lookup ON glossary_terms(normalized_term, scope);
CREATE INDEX IF NOT EXISTS idx_glossary_terms_scope ON glossary_terms(scope);
`

const embeddingSchema = `
CREATE TABLE IF NOT EXISTS entity_embeddings (
    id TEXT PRIMARY KEY,
    entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    document_id TEXT,
    embedding BLOB NOT NULL,
    dimension INTEGER NOT NULL,
    model TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_entity_embeddings_entity ON entity_embeddings(entity_id);
`
