// Package memstore implements store's repository contracts over plain
// in-process maps guarded by a mutex, grounded on
// internal/persistence/databases/chat_store_memory.go's keyed-map style:
// no ordering guarantees beyond insertion, linear scans for scope
// filtering, uuid.NewString for generated ids.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"memu/internal/memu/model"
	"memu/internal/memu/store"
)

// Resources is the in-memory ResourceRepo.
type Resources struct {
	mu    sync.RWMutex
	byID  map[string]*model.Resource
	order []string
}

// NewResources builds an empty in-memory resource repository.
func NewResources() *Resources {
	return &Resources{byID: map[string]*model.Resource{}}
}

func (r *Resources) Get(_ context.Context, id string) (*model.Resource, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.byID[id]
	if !ok {
		return nil, false, nil
	}
	clone := *res
	return &clone, true, nil
}

func (r *Resources) List(_ context.Context, scope model.Scope) ([]*model.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Resource
	for _, id := range r.order {
		res := r.byID[id]
		if res == nil || !res.Scope.Matches(scope) {
			continue
		}
		clone := *res
		out = append(out, &clone)
	}
	return out, nil
}

func (r *Resources) Clear(ctx context.Context, scope model.Scope) ([]*model.Resource, error) {
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
		delete(r.byID, id)
	}
	r.order = removeIDs(r.order, ids)
	return matched, nil
}

func (r *Resources) Create(_ context.Context, res *model.Resource) error {
	now := time.Now().UTC()
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	res.CreatedAt, res.UpdatedAt = now, now

	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *res
	r.byID[res.ID] = &clone
	r.order = append(r.order, res.ID)
	return nil
}

func (r *Resources) SetCaption(_ context.Context, id, caption string, embedding []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	res.Caption = caption
	res.CaptionEmbedding = embedding
	res.UpdatedAt = time.Now().UTC()
	return nil
}
