// Package store defines the repository contracts every storage backend
// implements: scoped CRUD for resources, memory items, categories, and
// category-item relations, plus the dedup/reinforce and vector-search
// operations the memorize and retrieve pipelines depend on. Two backends
// ship: store/memstore (in-memory) and store/pgstore (Postgres + pgvector);
// store/qdrantindex supplies an alternative pluggable VectorIndex.
package store

import (
	"context"

	"memu/internal/memu/model"
	"memu/internal/memu/vectorindex"
)

// ErrNotFound is returned by the update methods (UpdateSummary, SetCaption,
// SetRefID) when no record has the given id. Get reports absence through
// its bool result instead.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "memu: not found" }

// CategoryDefinition is a configured category, embedded once at service
// initialization (spec §5: "categories are embedded exactly once").
type CategoryDefinition struct {
	Name        string
	Description string
}

// ResourceRepo stores ingested artifacts.
type ResourceRepo interface {
	Get(ctx context.Context, id string) (*model.Resource, bool, error)
	List(ctx context.Context, scope model.Scope) ([]*model.Resource, error)
	Clear(ctx context.Context, scope model.Scope) ([]*model.Resource, error)
	Create(ctx context.Context, r *model.Resource) error
	SetCaption(ctx context.Context, id, caption string, embedding []float32) error
}

// MemoryItemRepo stores atomic memories, including the create-with-reinforce
// dedup path and ref_id-based lookup used by category-reference following.
type MemoryItemRepo interface {
	Get(ctx context.Context, id string) (*model.MemoryItem, bool, error)
	List(ctx context.Context, scope model.Scope) ([]*model.MemoryItem, error)
	Clear(ctx context.Context, scope model.Scope) ([]*model.MemoryItem, error)

	// Create inserts item unconditionally.
	Create(ctx context.Context, item *model.MemoryItem) error

	// CreateOrReinforce computes item's content hash and, within item's
	// scope, either bumps an existing match's reinforcement_count and
	// last_reinforced_at (returning it, reinforced=true) or inserts item
	// with reinforcement_count=1 (returning it, reinforced=false).
	CreateOrReinforce(ctx context.Context, item *model.MemoryItem) (result *model.MemoryItem, reinforced bool, err error)

	ListByRefIDs(ctx context.Context, refIDs []string, scope model.Scope) ([]*model.MemoryItem, error)
	SetRefID(ctx context.Context, id, refID string) error

	// VectorSearch ranks items in scope against query using strategy.
	// halfLifeDays is only consulted for RankingSalience.
	VectorSearch(ctx context.Context, query []float32, k int, scope model.Scope, strategy model.RankingStrategy, halfLifeDays float64) ([]vectorindex.Candidate, error)
}

// CategoryRepo stores the fixed, config-defined set of categories.
type CategoryRepo interface {
	Get(ctx context.Context, id string) (*model.MemoryCategory, bool, error)
	List(ctx context.Context, scope model.Scope) ([]*model.MemoryCategory, error)
	ByName(ctx context.Context, name string) (*model.MemoryCategory, bool, error)

	// EnsureCategories creates any category in defs missing from the
	// store, embedding name+description via embed. Idempotent: existing
	// categories are left untouched.
	EnsureCategories(ctx context.Context, defs []CategoryDefinition, embed func(ctx context.Context, text string) ([]float32, error)) error

	UpdateSummary(ctx context.Context, id, summary string) error

	// VectorSearch cosine-ranks the stored category embeddings (of
	// "name: description", set by EnsureCategories) against query.
	VectorSearch(ctx context.Context, query []float32, k int, scope model.Scope) ([]vectorindex.Candidate, error)
}

// CategoryItemRepo stores category<->item relations.
type CategoryItemRepo interface {
	Get(ctx context.Context, id string) (*model.CategoryItem, bool, error)
	List(ctx context.Context, scope model.Scope) ([]*model.CategoryItem, error)
	Clear(ctx context.Context, scope model.Scope) ([]*model.CategoryItem, error)

	// Create links categoryID and itemID if no such relation already
	// exists in scope (unique per item_id, category_id, scope).
	Create(ctx context.Context, rel *model.CategoryItem) error

	ListByCategory(ctx context.Context, categoryID string, scope model.Scope) ([]*model.CategoryItem, error)
}

// VectorIndex is a pluggable ANN backend for item embeddings, selected by
// the vector_backend config key as an alternative to a repository's own
// native or in-process search.
type VectorIndex interface {
	Upsert(ctx context.Context, id string, vector []float32) error
	Delete(ctx context.Context, id string) error
	TopK(ctx context.Context, query []float32, k int) ([]vectorindex.Candidate, error)
}

// Store aggregates the four repositories a pipeline depends on, mirroring
// the teacher's persistence.Manager aggregation style.
type Store struct {
	Resources     ResourceRepo
	Items         MemoryItemRepo
	Categories    CategoryRepo
	CategoryItems CategoryItemRepo
}
