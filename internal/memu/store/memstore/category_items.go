package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"memu/internal/memu/model"
)

// CategoryItems is the in-memory CategoryItemRepo.
type CategoryItems struct {
	mu    sync.RWMutex
	byID  map[string]*model.CategoryItem
	order []string
	// seen guards the (item_id, category_id, scope) uniqueness invariant.
	seen map[string]struct{}
}

// NewCategoryItems builds an empty in-memory category-item repository.
func NewCategoryItems() *CategoryItems {
	return &CategoryItems{
		byID: map[string]*model.CategoryItem{},
		seen: map[string]struct{}{},
	}
}

func relationKey(rel *model.CategoryItem) string {
	return scopeSignature(rel.Scope) + "#" + rel.ItemID + "#" + rel.CategoryID
}

func (r *CategoryItems) Get(_ context.Context, id string) (*model.CategoryItem, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rel, ok := r.byID[id]
	if !ok {
		return nil, false, nil
	}
	clone := *rel
	return &clone, true, nil
}

func (r *CategoryItems) List(_ context.Context, scope model.Scope) ([]*model.CategoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.CategoryItem
	for _, id := range r.order {
		rel := r.byID[id]
		if rel == nil || !rel.Scope.Matches(scope) {
			continue
		}
		clone := *rel
		out = append(out, &clone)
	}
	return out, nil
}

func (r *CategoryItems) Clear(ctx context.Context, scope model.Scope) ([]*model.CategoryItem, error) {
	matched, err := r.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(matched))
	for i, m := range matched {
		ids[i] = m.ID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		rel := r.byID[id]
		if rel != nil {
			delete(r.seen, relationKey(rel))
		}
		delete(r.byID, id)
	}
	r.order = removeIDs(r.order, ids)
	return matched, nil
}

// Create implements store.CategoryItemRepo: a no-op if the relation
// already exists in scope.
func (r *CategoryItems) Create(_ context.Context, rel *model.CategoryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := relationKey(rel)
	if _, exists := r.seen[key]; exists {
		return nil
	}

	now := time.Now().UTC()
	if rel.ID == "" {
		rel.ID = uuid.NewString()
	}
	rel.CreatedAt, rel.UpdatedAt = now, now

	clone := *rel
	r.byID[rel.ID] = &clone
	r.order = append(r.order, rel.ID)
	r.seen[key] = struct{}{}
	return nil
}

func (r *CategoryItems) ListByCategory(_ context.Context, categoryID string, scope model.Scope) ([]*model.CategoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.CategoryItem
	for _, id := range r.order {
		rel := r.byID[id]
		if rel == nil || rel.CategoryID != categoryID || !rel.Scope.Matches(scope) {
			continue
		}
		clone := *rel
		out = append(out, &clone)
	}
	return out, nil
}
