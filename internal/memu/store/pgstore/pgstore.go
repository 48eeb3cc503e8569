package pgstore

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"memu/internal/memu/model"
)

// Store bundles the four pgvector-backed repositories behind a shared pool.
type Store struct {
	Resources     *Resources
	Items         *Items
	Categories    *Categories
	CategoryItems *CategoryItems
}

// Open wires the four repositories to pool and ensures the schema exists
// for the given embedding dimensionality (the configured LLM profile's
// vector size, per SPEC_FULL.md §6.4).
func Open(ctx context.Context, pool *pgxpool.Pool, embeddingDim int) (*Store, error) {
	if err := ensureSchema(ctx, pool, embeddingDim); err != nil {
		return nil, err
	}
	return &Store{
		Resources:     &Resources{pool: pool},
		Items:         &Items{pool: pool},
		Categories:    &Categories{pool: pool},
		CategoryItems: &CategoryItems{pool: pool},
	}, nil
}

// marshalScope relies on encoding/json sorting map keys, so the same scope
// always serializes to the same bytes and can be compared with `=` for
// exact-scope dedup lookups, not just `@>` containment filters.
func marshalScope(scope model.Scope) ([]byte, error) {
	if scope == nil {
		scope = model.Scope{}
	}
	return json.Marshal(scope)
}

func unmarshalScope(raw []byte) (model.Scope, error) {
	var scope model.Scope
	if err := json.Unmarshal(raw, &scope); err != nil {
		return nil, err
	}
	return scope, nil
}

func marshalExtra(extra map[string]any) ([]byte, error) {
	if extra == nil {
		extra = map[string]any{}
	}
	return json.Marshal(extra)
}

func unmarshalExtra(raw []byte) (map[string]any, error) {
	var extra map[string]any
	if err := json.Unmarshal(raw, &extra); err != nil {
		return nil, err
	}
	return extra, nil
}

func toVector(embedding []float32) *pgvector.Vector {
	if embedding == nil {
		return nil
	}
	v := pgvector.NewVector(embedding)
	return &v
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
