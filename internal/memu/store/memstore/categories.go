package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"memu/internal/memu/model"
	"memu/internal/memu/store"
	"memu/internal/memu/vectorindex"
)

// Categories is the in-memory CategoryRepo. Categories are global (not
// scope-partitioned): spec.md §3 fixes the category set at service init.
type Categories struct {
	mu     sync.RWMutex
	byID   map[string]*model.MemoryCategory
	byName map[string]string // case-folded, trimmed name -> id
	order  []string
}

// NewCategories builds an empty in-memory category repository.
func NewCategories() *Categories {
	return &Categories{
		byID:   map[string]*model.MemoryCategory{},
		byName: map[string]string{},
	}
}

func normalizeCategoryName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Categories) Get(_ context.Context, id string) (*model.MemoryCategory, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, false, nil
	}
	clone := *c
	return &clone, true, nil
}

func (r *Categories) List(_ context.Context, scope model.Scope) ([]*model.MemoryCategory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.MemoryCategory
	for _, id := range r.order {
		c := r.byID[id]
		if c == nil || !c.Scope.Matches(scope) {
			continue
		}
		clone := *c
		out = append(out, &clone)
	}
	return out, nil
}

func (r *Categories) ByName(_ context.Context, name string) (*model.MemoryCategory, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[normalizeCategoryName(name)]
	if !ok {
		return nil, false, nil
	}
	clone := *r.byID[id]
	return &clone, true, nil
}

// EnsureCategories implements store.CategoryRepo.
func (r *Categories) EnsureCategories(ctx context.Context, defs []store.CategoryDefinition, embed func(ctx context.Context, text string) ([]float32, error)) error {
	for _, def := range defs {
		key := normalizeCategoryName(def.Name)

		r.mu.RLock()
		_, exists := r.byName[key]
		r.mu.RUnlock()
		if exists {
			continue
		}

		c := &model.MemoryCategory{Name: def.Name, Description: def.Description}
		embedding, err := embed(ctx, c.EmbeddingText())
		if err != nil {
			return err
		}
		c.Embedding = embedding

		now := time.Now().UTC()
		c.ID = uuid.NewString()
		c.CreatedAt, c.UpdatedAt = now, now

		r.mu.Lock()
		if _, exists := r.byName[key]; !exists {
			r.byID[c.ID] = c
			r.byName[key] = c.ID
			r.order = append(r.order, c.ID)
		}
		r.mu.Unlock()
	}
	return nil
}

func (r *Categories) UpdateSummary(_ context.Context, id, summary string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Summary = summary
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Categories) VectorSearch(_ context.Context, query []float32, k int, scope model.Scope) ([]vectorindex.Candidate, error) {
	r.mu.RLock()
	entries := make([]vectorindex.Embedded, 0, len(r.order))
	for _, id := range r.order {
		c := r.byID[id]
		if c != nil && c.Scope.Matches(scope) {
			entries = append(entries, vectorindex.Embedded{ID: c.ID, Embedding: c.Embedding})
		}
	}
	r.mu.RUnlock()
	return vectorindex.CosineTopK(query, entries, k), nil
}
