package pgstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"memu/internal/memu/model"
	"memu/internal/memu/store"
)

// Resources is the pgvector-backed ResourceRepo.
type Resources struct {
	pool *pgxpool.Pool
}

func (r *Resources) Get(ctx context.Context, id string) (*model.Resource, bool, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, url, modality, local_path, caption, caption_embedding, scope, created_at, updated_at
FROM resources WHERE id = $1`, id)
	res, err := scanResource(row)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return res, true, nil
}

func (r *Resources) List(ctx context.Context, scope model.Scope) ([]*model.Resource, error) {
	scopeJSON, err := marshalScope(scope)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, url, modality, local_path, caption, caption_embedding, scope, created_at, updated_at
FROM resources WHERE scope @> $1 ORDER BY created_at`, scopeJSON)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *Resources) Clear(ctx context.Context, scope model.Scope) ([]*model.Resource, error) {
	matched, err := r.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	scopeJSON, err := marshalScope(scope)
	if err != nil {
		return nil, err
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM resources WHERE scope @> $1`, scopeJSON); err != nil {
		return nil, err
	}
	return matched, nil
}

func (r *Resources) Create(ctx context.Context, res *model.Resource) error {
	now := time.Now().UTC()
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	res.CreatedAt, res.UpdatedAt = now, now

	scopeJSON, err := marshalScope(res.Scope)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
INSERT INTO resources (id, url, modality, local_path, caption, caption_embedding, scope, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		res.ID, res.URL, string(res.Modality), res.LocalPath, res.Caption,
		toVector(res.CaptionEmbedding), scopeJSON, res.CreatedAt, res.UpdatedAt)
	return err
}

func (r *Resources) SetCaption(ctx context.Context, id, caption string, embedding []float32) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE resources SET caption = $2, caption_embedding = $3, updated_at = $4 WHERE id = $1`,
		id, caption, toVector(embedding), time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanResource(row rowScanner) (*model.Resource, error) {
	var (
		res       model.Resource
		modality  string
		embedding *pgvector.Vector
		scopeJSON []byte
	)
	if err := row.Scan(&res.ID, &res.URL, &modality, &res.LocalPath, &res.Caption,
		&embedding, &scopeJSON, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, err
	}
	res.Modality = model.Modality(modality)
	if embedding != nil {
		res.CaptionEmbedding = embedding.Slice()
	}
	scope, err := unmarshalScope(scopeJSON)
	if err != nil {
		return nil, err
	}
	res.Scope = scope
	return &res, nil
}
