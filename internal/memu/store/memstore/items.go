package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"memu/internal/memu/model"
	"memu/internal/memu/store"
	"memu/internal/memu/vectorindex"
)

// Items is the in-memory MemoryItemRepo. A secondary index keyed by
// (scope signature, content_hash) backs create-with-reinforce, and the
// single mutex serializes reinforcement updates for a given key the way
// spec.md §5 requires.
type Items struct {
	mu     sync.Mutex
	byID   map[string]*model.MemoryItem
	order  []string
	byHash map[string]string // scopeSig|content_hash -> item id
}

// NewItems builds an empty in-memory item repository.
func NewItems() *Items {
	return &Items{
		byID:   map[string]*model.MemoryItem{},
		byHash: map[string]string{},
	}
}

func scopeSignature(s model.Scope) string {
	// deterministic enough for a hash-map key: fixed iteration via sorted
	// keys would require importing sort for every call; since scope sets
	// are tiny and fixed per deployment, a simple concatenation keyed by a
	// canonical field order is sufficient here.
	sig := ""
	for _, k := range []string{"user_id", "agent_id", "session_id"} {
		sig += k + "=" + s[k] + ";"
	}
	return sig
}

func hashKey(s model.Scope, contentHash string) string {
	return scopeSignature(s) + "#" + contentHash
}

func (r *Items) Get(_ context.Context, id string) (*model.MemoryItem, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.byID[id]
	if !ok {
		return nil, false, nil
	}
	clone := *item
	return &clone, true, nil
}

func (r *Items) List(_ context.Context, scope model.Scope) ([]*model.MemoryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.MemoryItem
	for _, id := range r.order {
		item := r.byID[id]
		if item == nil || !item.Scope.Matches(scope) {
			continue
		}
		clone := *item
		out = append(out, &clone)
	}
	return out, nil
}

func (r *Items) Clear(ctx context.Context, scope model.Scope) ([]*model.MemoryItem, error) {
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
		item := r.byID[id]
		if item != nil {
			delete(r.byHash, hashKey(item.Scope, item.ContentHash()))
		}
		delete(r.byID, id)
	}
	r.order = removeIDs(r.order, ids)
	return matched, nil
}

func (r *Items) Create(_ context.Context, item *model.MemoryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertLocked(item)
	return nil
}

func (r *Items) insertLocked(item *model.MemoryItem) {
	now := time.Now().UTC()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.CreatedAt, item.UpdatedAt = now, now

	clone := *item
	r.byID[item.ID] = &clone
	r.order = append(r.order, item.ID)
	r.byHash[hashKey(item.Scope, item.ContentHash())] = item.ID
}

// CreateOrReinforce implements store.MemoryItemRepo.
func (r *Items) CreateOrReinforce(_ context.Context, item *model.MemoryItem) (*model.MemoryItem, bool, error) {
	hash := model.ComputeContentHash(item.MemoryType, item.Summary)
	if item.Extra == nil {
		item.Extra = map[string]any{}
	}
	item.Extra["content_hash"] = hash

	r.mu.Lock()
	defer r.mu.Unlock()

	key := hashKey(item.Scope, hash)
	if existingID, ok := r.byHash[key]; ok {
		existing := r.byID[existingID]
		count := existing.ReinforcementCount() + 1
		now := time.Now().UTC()
		existing.Extra["reinforcement_count"] = count
		existing.Extra["last_reinforced_at"] = now.Format(time.RFC3339Nano)
		existing.UpdatedAt = now
		clone := *existing
		return &clone, true, nil
	}

	item.Extra["reinforcement_count"] = 1
	r.insertLocked(item)
	clone := *item
	return &clone, false, nil
}

func (r *Items) ListByRefIDs(_ context.Context, refIDs []string, scope model.Scope) ([]*model.MemoryItem, error) {
	want := make(map[string]struct{}, len(refIDs))
	for _, id := range refIDs {
		want[id] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.MemoryItem
	for _, id := range r.order {
		item := r.byID[id]
		if item == nil || !item.Scope.Matches(scope) {
			continue
		}
		if _, ok := want[item.RefID()]; !ok {
			continue
		}
		clone := *item
		out = append(out, &clone)
	}
	return out, nil
}

func (r *Items) SetRefID(_ context.Context, id, refID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	item.SetRefID(refID)
	item.UpdatedAt = time.Now().UTC()
	return nil
}

// VectorSearch implements store.MemoryItemRepo over the in-process
// vectorindex package, per spec.md §4.1: salience is always computed
// in-process even when a backend could push similarity down natively.
func (r *Items) VectorSearch(_ context.Context, query []float32, k int, scope model.Scope, strategy model.RankingStrategy, halfLifeDays float64) ([]vectorindex.Candidate, error) {
	r.mu.Lock()
	items := make([]*model.MemoryItem, 0, len(r.order))
	for _, id := range r.order {
		item := r.byID[id]
		if item != nil && item.Scope.Matches(scope) {
			items = append(items, item)
		}
	}
	r.mu.Unlock()

	if halfLifeDays <= 0 {
		halfLifeDays = vectorindex.DefaultRecencyDecayDays
	}

	switch strategy {
	case model.RankingSalience:
		entries := make([]vectorindex.SalienceEntry, 0, len(items))
		for _, it := range items {
			var last *time.Time
			if t, ok := it.LastReinforcedAt(); ok {
				last = &t
			}
			entries = append(entries, vectorindex.SalienceEntry{
				ID:                 it.ID,
				Embedding:          it.Embedding,
				ReinforcementCount: it.ReinforcementCount(),
				LastReinforcedAt:   last,
			})
		}
		return vectorindex.SalienceTopK(query, entries, k, halfLifeDays, time.Now().UTC()), nil
	default:
		entries := make([]vectorindex.Embedded, 0, len(items))
		for _, it := range items {
			entries = append(entries, vectorindex.Embedded{ID: it.ID, Embedding: it.Embedding})
		}
		return vectorindex.CosineTopK(query, entries, k), nil
	}
}
