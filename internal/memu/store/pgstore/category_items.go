package pgstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"memu/internal/memu/model"
)

// CategoryItems is the pgvector-backed CategoryItemRepo.
type CategoryItems struct {
	pool *pgxpool.Pool
}

const categoryItemSelect = `
SELECT id, item_id, category_id, scope, created_at, updated_at
FROM category_items`

func (r *CategoryItems) Get(ctx context.Context, id string) (*model.CategoryItem, bool, error) {
	row := r.pool.QueryRow(ctx, categoryItemSelect+` WHERE id = $1`, id)
	rel, err := scanCategoryItem(row)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return rel, true, nil
}

func (r *CategoryItems) List(ctx context.Context, scope model.Scope) ([]*model.CategoryItem, error) {
	scopeJSON, err := marshalScope(scope)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, categoryItemSelect+` WHERE scope @> $1 ORDER BY created_at`, scopeJSON)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.CategoryItem
	for rows.Next() {
		rel, err := scanCategoryItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}

func (r *CategoryItems) Clear(ctx context.Context, scope model.Scope) ([]*model.CategoryItem, error) {
	matched, err := r.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	scopeJSON, err := marshalScope(scope)
	if err != nil {
		return nil, err
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM category_items WHERE scope @> $1`, scopeJSON); err != nil {
		return nil, err
	}
	return matched, nil
}

// Create relies on the (item_id, category_id, scope) unique index to make
// re-linking a no-op, matching memstore's seen-set uniqueness contract.
func (r *CategoryItems) Create(ctx context.Context, rel *model.CategoryItem) error {
	now := time.Now().UTC()
	if rel.ID == "" {
		rel.ID = uuid.NewString()
	}
	rel.CreatedAt, rel.UpdatedAt = now, now

	scopeJSON, err := marshalScope(rel.Scope)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
INSERT INTO category_items (id, item_id, category_id, scope, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (item_id, category_id, scope) DO NOTHING`,
		rel.ID, rel.ItemID, rel.CategoryID, scopeJSON, now)
	return err
}

func (r *CategoryItems) ListByCategory(ctx context.Context, categoryID string, scope model.Scope) ([]*model.CategoryItem, error) {
	scopeJSON, err := marshalScope(scope)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, categoryItemSelect+`
WHERE category_id = $1 AND scope @> $2 ORDER BY created_at`, categoryID, scopeJSON)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.CategoryItem
	for rows.Next() {
		rel, err := scanCategoryItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}

func scanCategoryItem(row rowScanner) (*model.CategoryItem, error) {
	var (
		rel       model.CategoryItem
		scopeJSON []byte
	)
	if err := row.Scan(&rel.ID, &rel.ItemID, &rel.CategoryID, &scopeJSON, &rel.CreatedAt, &rel.UpdatedAt); err != nil {
		return nil, err
	}
	scope, err := unmarshalScope(scopeJSON)
	if err != nil {
		return nil, err
	}
	rel.Scope = scope
	return &rel, nil
}
