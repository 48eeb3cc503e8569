// Package pgstore implements store's repository contracts over Postgres
// with pgvector, grounded on
// internal/persistence/databases/evolving_memory_store_postgres.go's
// idempotent Init/CREATE TABLE IF NOT EXISTS style and agentic_memory.go's
// vector(N) column + `ORDER BY embedding <-> $N` native similarity search.
package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ensureSchema creates every table this backend needs, idempotently, with
// embedding columns sized to embeddingDim (the configured profile's
// vector dimensionality, per SPEC_FULL.md §6.4).
func ensureSchema(ctx context.Context, pool *pgxpool.Pool, embeddingDim int) error {
	_, err := pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS resources (
    id UUID PRIMARY KEY,
    url TEXT NOT NULL,
    modality TEXT NOT NULL,
    local_path TEXT NOT NULL DEFAULT '',
    caption TEXT NOT NULL DEFAULT '',
    caption_embedding vector(%[1]d),
    scope JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS resources_scope_idx ON resources USING GIN (scope);

CREATE TABLE IF NOT EXISTS memory_items (
    id UUID PRIMARY KEY,
    resource_id UUID,
    memory_type TEXT NOT NULL,
    summary TEXT NOT NULL,
    embedding vector(%[1]d),
    happened_at TIMESTAMPTZ,
    extra JSONB NOT NULL DEFAULT '{}'::jsonb,
    scope JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS memory_items_scope_idx ON memory_items USING GIN (scope);
CREATE INDEX IF NOT EXISTS memory_items_content_hash_idx ON memory_items ((extra ->> 'content_hash'));
CREATE INDEX IF NOT EXISTS memory_items_ref_id_idx ON memory_items ((extra ->> 'ref_id'));

CREATE TABLE IF NOT EXISTS memory_categories (
    id UUID PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    embedding vector(%[1]d),
    summary TEXT NOT NULL DEFAULT '',
    scope JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS memory_categories_name_idx ON memory_categories (lower(name));

CREATE TABLE IF NOT EXISTS category_items (
    id UUID PRIMARY KEY,
    item_id UUID NOT NULL,
    category_id UUID NOT NULL,
    scope JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS category_items_unique_idx ON category_items (item_id, category_id, scope);
`, embeddingDim))
	return err
}
