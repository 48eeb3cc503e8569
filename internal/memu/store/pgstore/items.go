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
	"memu/internal/memu/vectorindex"
)

// Items is the pgvector-backed MemoryItemRepo.
type Items struct {
	pool *pgxpool.Pool
}

func (r *Items) Get(ctx context.Context, id string) (*model.MemoryItem, bool, error) {
	row := r.pool.QueryRow(ctx, itemSelect+` WHERE id = $1`, id)
	item, err := scanItem(row)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return item, true, nil
}

func (r *Items) List(ctx context.Context, scope model.Scope) ([]*model.MemoryItem, error) {
	scopeJSON, err := marshalScope(scope)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, itemSelect+` WHERE scope @> $1 ORDER BY created_at`, scopeJSON)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.MemoryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *Items) Clear(ctx context.Context, scope model.Scope) ([]*model.MemoryItem, error) {
	matched, err := r.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	scopeJSON, err := marshalScope(scope)
	if err != nil {
		return nil, err
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM memory_items WHERE scope @> $1`, scopeJSON); err != nil {
		return nil, err
	}
	return matched, nil
}

func (r *Items) Create(ctx context.Context, item *model.MemoryItem) error {
	return r.insert(ctx, item)
}

// CreateOrReinforce implements the dedup-then-reinforce-else-insert
// contract (spec.md §4.1): a transaction guards the check-then-act so
// concurrent memorize runs for the same scope+content can't double-insert.
func (r *Items) CreateOrReinforce(ctx context.Context, item *model.MemoryItem) (*model.MemoryItem, bool, error) {
	hash := model.ComputeContentHash(item.MemoryType, item.Summary)
	scopeJSON, err := marshalScope(item.Scope)
	if err != nil {
		return nil, false, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	// FOR UPDATE locks nothing while no row matches yet, so a transaction
	// advisory lock keyed on scope+hash serializes the check-then-insert.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text || $2::text))`, string(scopeJSON), hash); err != nil {
		return nil, false, err
	}

	row := tx.QueryRow(ctx, itemSelect+`
WHERE scope = $1::jsonb AND extra ->> 'content_hash' = $2
FOR UPDATE`, scopeJSON, hash)
	existing, err := scanItem(row)
	switch {
	case err == pgx.ErrNoRows:
		if item.Extra == nil {
			item.Extra = map[string]any{}
		}
		item.Extra["content_hash"] = hash
		item.Extra["reinforcement_count"] = 1
		if err := r.insertTx(ctx, tx, item); err != nil {
			return nil, false, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, false, err
		}
		return item, false, nil
	case err != nil:
		return nil, false, err
	}

	now := time.Now().UTC()
	existing.Extra["reinforcement_count"] = existing.ReinforcementCount() + 1
	existing.Extra["last_reinforced_at"] = now.Format(time.RFC3339Nano)
	existing.UpdatedAt = now
	extraJSON, err := marshalExtra(existing.Extra)
	if err != nil {
		return nil, false, err
	}
	if _, err := tx.Exec(ctx, `UPDATE memory_items SET extra = $2, updated_at = $3 WHERE id = $1`,
		existing.ID, extraJSON, now); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return existing, true, nil
}

func (r *Items) insert(ctx context.Context, item *model.MemoryItem) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := r.insertTx(ctx, tx, item); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Items) insertTx(ctx context.Context, tx pgx.Tx, item *model.MemoryItem) error {
	now := time.Now().UTC()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.CreatedAt, item.UpdatedAt = now, now

	scopeJSON, err := marshalScope(item.Scope)
	if err != nil {
		return err
	}
	extraJSON, err := marshalExtra(item.Extra)
	if err != nil {
		return err
	}

	var resourceID any
	if item.ResourceID != "" {
		resourceID = item.ResourceID
	}

	_, err = tx.Exec(ctx, `
INSERT INTO memory_items (id, resource_id, memory_type, summary, embedding, happened_at, extra, scope, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		item.ID, resourceID, string(item.MemoryType), item.Summary, toVector(item.Embedding),
		item.HappenedAt, extraJSON, scopeJSON, item.CreatedAt, item.UpdatedAt)
	return err
}

func (r *Items) ListByRefIDs(ctx context.Context, refIDs []string, scope model.Scope) ([]*model.MemoryItem, error) {
	if len(refIDs) == 0 {
		return nil, nil
	}
	scopeJSON, err := marshalScope(scope)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, itemSelect+`
WHERE scope @> $1 AND extra ->> 'ref_id' = ANY($2)`, scopeJSON, refIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.MemoryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *Items) SetRefID(ctx context.Context, id, refID string) error {
	item, found, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return store.ErrNotFound
	}
	item.SetRefID(refID)
	extraJSON, err := marshalExtra(item.Extra)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `UPDATE memory_items SET extra = $2, updated_at = $3 WHERE id = $1`,
		id, extraJSON, time.Now().UTC())
	return err
}

// prefetchFactor overfetches native nearest-neighbor candidates before the
// in-process salience re-rank, since recency/reinforcement can reorder past
// what cosine distance alone would return.
const prefetchFactor = 5

// VectorSearch prefetches nearest neighbors with pgvector's native cosine
// distance operator (mirroring agentic_memory.go's
// `ORDER BY embedding <-> $N` pattern, substituting the cosine operator
// since the ranking metric here is defined as cosine similarity) and always
// finishes the ranking in-process, per spec.md §4.1: a native vector
// backend narrows the candidate set, it never replaces salience scoring.
func (r *Items) VectorSearch(ctx context.Context, query []float32, k int, scope model.Scope, strategy model.RankingStrategy, halfLifeDays float64) ([]vectorindex.Candidate, error) {
	if halfLifeDays <= 0 {
		halfLifeDays = vectorindex.DefaultRecencyDecayDays
	}
	scopeJSON, err := marshalScope(scope)
	if err != nil {
		return nil, err
	}
	vec := toVector(query)

	limit := k
	if strategy == model.RankingSalience {
		limit = k * prefetchFactor
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, embedding, extra
FROM memory_items
WHERE scope @> $1 AND embedding IS NOT NULL
ORDER BY embedding <=> $2
LIMIT $3`, scopeJSON, vec, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := time.Now().UTC()
	var entries []vectorindex.SalienceEntry
	for rows.Next() {
		var (
			id        string
			embedding *pgvector.Vector
			extraJSON []byte
		)
		if err := rows.Scan(&id, &embedding, &extraJSON); err != nil {
			return nil, err
		}
		extra, err := unmarshalExtra(extraJSON)
		if err != nil {
			return nil, err
		}
		item := &model.MemoryItem{Extra: extra}
		var lastReinforced *time.Time
		if t, ok := item.LastReinforcedAt(); ok {
			lastReinforced = &t
		}
		entries = append(entries, vectorindex.SalienceEntry{
			ID: id, Embedding: embedding.Slice(),
			ReinforcementCount: item.ReinforcementCount(), LastReinforcedAt: lastReinforced,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if strategy == model.RankingSimilarity {
		plain := make([]vectorindex.Embedded, len(entries))
		for i, e := range entries {
			plain[i] = vectorindex.Embedded{ID: e.ID, Embedding: e.Embedding}
		}
		return vectorindex.CosineTopK(query, plain, k), nil
	}
	return vectorindex.SalienceTopK(query, entries, k, halfLifeDays, now), nil
}

const itemSelect = `
SELECT id, COALESCE(resource_id::text, ''), memory_type, summary, embedding, happened_at, extra, scope, created_at, updated_at
FROM memory_items`

func scanItem(row rowScanner) (*model.MemoryItem, error) {
	var (
		item       model.MemoryItem
		memoryType string
		embedding  *pgvector.Vector
		extraJSON  []byte
		scopeJSON  []byte
	)
	if err := row.Scan(&item.ID, &item.ResourceID, &memoryType, &item.Summary, &embedding,
		&item.HappenedAt, &extraJSON, &scopeJSON, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.MemoryType = model.MemoryType(memoryType)
	if embedding != nil {
		item.Embedding = embedding.Slice()
	}
	extra, err := unmarshalExtra(extraJSON)
	if err != nil {
		return nil, err
	}
	item.Extra = extra
	scope, err := unmarshalScope(scopeJSON)
	if err != nil {
		return nil, err
	}
	item.Scope = scope
	return &item, nil
}
