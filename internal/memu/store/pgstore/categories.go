package pgstore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"memu/internal/memu/model"
	"memu/internal/memu/store"
	"memu/internal/memu/vectorindex"
)

// Categories is the pgvector-backed CategoryRepo. Categories are global
// (not scope-partitioned), matching spec.md §3's fixed-at-init category set.
type Categories struct {
	pool *pgxpool.Pool
}

const categorySelect = `
SELECT id, name, description, embedding, summary, scope, created_at, updated_at
FROM memory_categories`

func (r *Categories) Get(ctx context.Context, id string) (*model.MemoryCategory, bool, error) {
	row := r.pool.QueryRow(ctx, categorySelect+` WHERE id = $1`, id)
	c, err := scanCategory(row)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

func (r *Categories) List(ctx context.Context, scope model.Scope) ([]*model.MemoryCategory, error) {
	scopeJSON, err := marshalScope(scope)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, categorySelect+` WHERE scope @> $1 ORDER BY created_at`, scopeJSON)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.MemoryCategory
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Categories) ByName(ctx context.Context, name string) (*model.MemoryCategory, bool, error) {
	row := r.pool.QueryRow(ctx, categorySelect+` WHERE lower(name) = $1`, strings.ToLower(strings.TrimSpace(name)))
	c, err := scanCategory(row)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// EnsureCategories implements store.CategoryRepo. The unique index on
// lower(name) makes the insert idempotent under races; ON CONFLICT DO
// NOTHING avoids a transaction just to discover that.
func (r *Categories) EnsureCategories(ctx context.Context, defs []store.CategoryDefinition, embed func(ctx context.Context, text string) ([]float32, error)) error {
	for _, def := range defs {
		if _, exists, err := r.ByName(ctx, def.Name); err != nil {
			return err
		} else if exists {
			continue
		}

		c := &model.MemoryCategory{Name: def.Name, Description: def.Description}
		embedding, err := embed(ctx, c.EmbeddingText())
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		id := uuid.NewString()
		scopeJSON, err := marshalScope(nil)
		if err != nil {
			return err
		}
		if _, err := r.pool.Exec(ctx, `
INSERT INTO memory_categories (id, name, description, embedding, summary, scope, created_at, updated_at)
VALUES ($1, $2, $3, $4, '', $5, $6, $6)
ON CONFLICT (lower(name)) DO NOTHING`,
			id, def.Name, def.Description, toVector(embedding), scopeJSON, now); err != nil {
			return err
		}
	}
	return nil
}

func (r *Categories) UpdateSummary(ctx context.Context, id, summary string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE memory_categories SET summary = $2, updated_at = $3 WHERE id = $1`,
		id, summary, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// VectorSearch ranks categories by cosine distance alone: category routing
// has no reinforcement/recency dimension, so no in-process salience pass is
// needed on top of the native ordering.
func (r *Categories) VectorSearch(ctx context.Context, query []float32, k int, scope model.Scope) ([]vectorindex.Candidate, error) {
	scopeJSON, err := marshalScope(scope)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, 1 - (embedding <=> $2) AS score
FROM memory_categories
WHERE scope @> $1 AND embedding IS NOT NULL
ORDER BY embedding <=> $2
LIMIT $3`, scopeJSON, toVector(query), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []vectorindex.Candidate
	for rows.Next() {
		var cand vectorindex.Candidate
		if err := rows.Scan(&cand.ID, &cand.Score); err != nil {
			return nil, err
		}
		out = append(out, cand)
	}
	return out, rows.Err()
}

func scanCategory(row rowScanner) (*model.MemoryCategory, error) {
	var (
		c         model.MemoryCategory
		embedding *pgvector.Vector
		scopeJSON []byte
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &embedding, &c.Summary, &scopeJSON, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if embedding != nil {
		c.Embedding = embedding.Slice()
	}
	scope, err := unmarshalScope(scopeJSON)
	if err != nil {
		return nil, err
	}
	c.Scope = scope
	return &c, nil
}
