package engine

import (
	"context"
	"sort"
	"time"

	"memu/internal/memu/model"
	"memu/internal/memu/store"
	"memu/internal/memu/vectorindex"
)

// vectorIndexedItems decorates a store.MemoryItemRepo so that every write
// is mirrored into an external store.VectorIndex (Qdrant), and VectorSearch
// is answered by that index rather than the repo's own native/in-process
// ranking. It is what vector_backend: qdrant actually wires up: the
// repository still owns item records, but similarity search is delegated.
type vectorIndexedItems struct {
	store.MemoryItemRepo
	index store.VectorIndex
}

func newVectorIndexedItems(repo store.MemoryItemRepo, index store.VectorIndex) store.MemoryItemRepo {
	return &vectorIndexedItems{MemoryItemRepo: repo, index: index}
}

func (v *vectorIndexedItems) Create(ctx context.Context, item *model.MemoryItem) error {
	if err := v.MemoryItemRepo.Create(ctx, item); err != nil {
		return err
	}
	return v.index.Upsert(ctx, item.ID, item.Embedding)
}

func (v *vectorIndexedItems) CreateOrReinforce(ctx context.Context, item *model.MemoryItem) (*model.MemoryItem, bool, error) {
	result, reinforced, err := v.MemoryItemRepo.CreateOrReinforce(ctx, item)
	if err != nil {
		return nil, false, err
	}
	if !reinforced {
		if err := v.index.Upsert(ctx, result.ID, result.Embedding); err != nil {
			return nil, false, err
		}
	}
	return result, reinforced, nil
}

// VectorSearch ranks via the external index, then resolves the matched ids
// back to full records from the primary repository so scope filtering and
// salience re-scoring still apply uniformly across backends.
func (v *vectorIndexedItems) VectorSearch(ctx context.Context, query []float32, k int, scope model.Scope, strategy model.RankingStrategy, halfLifeDays float64) ([]vectorindex.Candidate, error) {
	overfetch := k * 4
	if overfetch < k {
		overfetch = k
	}
	candidates, err := v.index.TopK(ctx, query, overfetch)
	if err != nil {
		return nil, err
	}

	all, err := v.MemoryItemRepo.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.MemoryItem, len(all))
	for _, item := range all {
		byID[item.ID] = item
	}

	if halfLifeDays <= 0 {
		halfLifeDays = vectorindex.DefaultRecencyDecayDays
	}

	var out []vectorindex.Candidate
	for _, c := range candidates {
		item, ok := byID[c.ID]
		if !ok {
			continue // not in this scope, or deleted
		}
		score := c.Score
		if strategy == model.RankingSalience {
			var last *time.Time
			if t, ok := item.LastReinforcedAt(); ok {
				last = &t
			}
			score = vectorindex.SalienceScore(c.Score, item.ReinforcementCount(), last, halfLifeDays, time.Now().UTC())
		}
		out = append(out, vectorindex.Candidate{ID: c.ID, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if k >= 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}
