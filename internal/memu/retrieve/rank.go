package retrieve

import (
	"context"
	"strconv"
	"time"

	"memu/internal/memu/llmclient"
	"memu/internal/memu/model"
	"memu/internal/memu/refs"
	"memu/internal/memu/store"
	"memu/internal/memu/vectorindex"
)

const rankingSystemPrompt = "You are a precise ranking assistant. Respond only with the requested JSON array."

func embedQuery(ctx context.Context, llm llmclient.Client, query string) ([]float32, error) {
	vecs, err := llm.Embed(ctx, "embedding", []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, errEmptyEmbedding
	}
	return vecs[0], nil
}

// routeCategoryRAG ranks categories by cosine similarity between the active
// query and each category's own summary (re-embedded on the fly, rather
// than its stored name+description embedding) so routing reflects what the
// category currently says, not just its label (spec.md §4.6 step 2).
func routeCategoryRAG(ctx context.Context, s *State, llm llmclient.Client, repos *store.Store) ([]CategoryHit, error) {
	categories, err := repos.Categories.List(ctx, model.Scope{})
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, nil
	}

	texts := make([]string, len(categories))
	for i, c := range categories {
		if c.Summary != "" {
			texts[i] = c.Summary
		} else {
			texts[i] = c.EmbeddingText()
		}
	}
	summaryEmbeddings, err := llm.Embed(ctx, "embedding", texts)
	if err != nil {
		return nil, nil
	}
	queryEmb, err := embedQuery(ctx, llm, s.activeQuery)
	if err != nil {
		return nil, nil
	}

	entries := make([]vectorindex.Embedded, len(categories))
	byID := make(map[string]*model.MemoryCategory, len(categories))
	for i, c := range categories {
		entries[i] = vectorindex.Embedded{ID: c.ID, Embedding: summaryEmbeddings[i]}
		byID[c.ID] = c
	}
	candidates := vectorindex.CosineTopK(queryEmb, entries, s.CategoryTopK)

	hits := make([]CategoryHit, 0, len(candidates))
	for _, cand := range candidates {
		cat := byID[cand.ID]
		score := cand.Score
		hits = append(hits, CategoryHit{ID: cat.ID, Name: cat.Name, Summary: cat.Summary, Score: &score})
	}
	return hits, nil
}

func routeCategoryLLM(ctx context.Context, s *State, llm llmclient.Client, repos *store.Store) ([]CategoryHit, error) {
	categories, err := repos.Categories.List(ctx, model.Scope{})
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, nil
	}

	prompt := s.Prompts.RouteCategoryPrompt(map[string]string{
		"query":           s.activeQuery,
		"top_k":           strconv.Itoa(s.CategoryTopK),
		"categories_data": formatCategories(categories),
	})
	raw, err := llm.Summarize(ctx, "ranking", prompt, rankingSystemPrompt)
	if err != nil {
		return nil, nil
	}
	ids, err := parseIDList(raw)
	if err != nil {
		return nil, nil
	}

	byID := make(map[string]*model.MemoryCategory, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}
	return categoryHitsFromIDs(ids, byID, s.CategoryTopK), nil
}

func categoryHitsFromIDs(ids []string, byID map[string]*model.MemoryCategory, topK int) []CategoryHit {
	hits := make([]CategoryHit, 0, len(ids))
	for _, id := range ids {
		cat, ok := byID[id]
		if !ok {
			continue
		}
		hits = append(hits, CategoryHit{ID: cat.ID, Name: cat.Name, Summary: cat.Summary})
		if topK > 0 && len(hits) >= topK {
			break
		}
	}
	return hits
}

// restrictedItemPool loads the item pool category-reference-following
// restricts recall to: every item any top category hit's summary actually
// cites via [ref:ID]. Returns (nil, false) when no restriction applies.
func restrictedItemPool(ctx context.Context, s *State, repos *store.Store) ([]*model.MemoryItem, bool, error) {
	if !s.EnableCategoryRefFollowing || len(s.categoryHits) == 0 {
		return nil, false, nil
	}
	var ids []string
	for _, h := range s.categoryHits {
		ids = append(ids, refs.Extract(h.Summary)...)
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, false, nil
	}
	items, err := repos.Items.ListByRefIDs(ctx, ids, s.Request.Scope)
	if err != nil {
		return nil, false, err
	}
	return items, true, nil
}

func recallItemsRAG(ctx context.Context, s *State, llm llmclient.Client, repos *store.Store) ([]ItemHit, error) {
	queryEmb, err := embedQuery(ctx, llm, s.activeQuery)
	if err != nil {
		return nil, nil
	}

	pool, restricted, err := restrictedItemPool(ctx, s, repos)
	if err != nil {
		return nil, err
	}
	if restricted {
		return rankItemPoolInProcess(queryEmb, pool, s.ItemRanking, s.ItemTopK, s.RecencyHalfLifeDays), nil
	}

	candidates, err := repos.Items.VectorSearch(ctx, queryEmb, s.ItemTopK, s.Request.Scope, s.ItemRanking, s.RecencyHalfLifeDays)
	if err != nil {
		return nil, err
	}
	hits := make([]ItemHit, 0, len(candidates))
	for _, cand := range candidates {
		item, found, err := repos.Items.Get(ctx, cand.ID)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		score := cand.Score
		hits = append(hits, ItemHit{ID: item.ID, ResourceID: item.ResourceID, MemoryType: item.MemoryType, Summary: item.Summary, Score: &score})
	}
	return hits, nil
}

func rankItemPoolInProcess(queryEmb []float32, pool []*model.MemoryItem, strategy model.RankingStrategy, topK int, halfLifeDays float64) []ItemHit {
	byID := make(map[string]*model.MemoryItem, len(pool))
	var candidates []vectorindex.Candidate
	if strategy == model.RankingSalience {
		entries := make([]vectorindex.SalienceEntry, len(pool))
		for i, it := range pool {
			var lastPtr *time.Time
			if t, ok := it.LastReinforcedAt(); ok {
				lastPtr = &t
			}
			entries[i] = vectorindex.SalienceEntry{ID: it.ID, Embedding: it.Embedding, ReinforcementCount: it.ReinforcementCount(), LastReinforcedAt: lastPtr}
			byID[it.ID] = it
		}
		candidates = vectorindex.SalienceTopK(queryEmb, entries, topK, halfLifeDays, time.Now().UTC())
	} else {
		entries := make([]vectorindex.Embedded, len(pool))
		for i, it := range pool {
			entries[i] = vectorindex.Embedded{ID: it.ID, Embedding: it.Embedding}
			byID[it.ID] = it
		}
		candidates = vectorindex.CosineTopK(queryEmb, entries, topK)
	}

	hits := make([]ItemHit, 0, len(candidates))
	for _, cand := range candidates {
		item := byID[cand.ID]
		score := cand.Score
		hits = append(hits, ItemHit{ID: item.ID, ResourceID: item.ResourceID, MemoryType: item.MemoryType, Summary: item.Summary, Score: &score})
	}
	return hits
}

func recallItemsLLM(ctx context.Context, s *State, llm llmclient.Client, repos *store.Store) ([]ItemHit, error) {
	pool, restricted, err := restrictedItemPool(ctx, s, repos)
	if err != nil {
		return nil, err
	}
	if !restricted {
		pool, err = repos.Items.List(ctx, s.Request.Scope)
		if err != nil {
			return nil, err
		}
	}
	if len(pool) == 0 {
		return nil, nil
	}

	prompt := s.Prompts.RecallItemsPrompt(map[string]string{
		"query":      s.activeQuery,
		"top_k":      strconv.Itoa(s.ItemTopK),
		"items_data": formatItems(pool),
	})
	raw, err := llm.Summarize(ctx, "ranking", prompt, rankingSystemPrompt)
	if err != nil {
		return nil, nil
	}
	ids, err := parseIDList(raw)
	if err != nil {
		return nil, nil
	}

	byID := make(map[string]*model.MemoryItem, len(pool))
	for _, it := range pool {
		byID[it.ID] = it
	}
	hits := make([]ItemHit, 0, len(ids))
	for _, id := range ids {
		it, ok := byID[id]
		if !ok {
			continue
		}
		hits = append(hits, ItemHit{ID: it.ID, ResourceID: it.ResourceID, MemoryType: it.MemoryType, Summary: it.Summary})
		if s.ItemTopK > 0 && len(hits) >= s.ItemTopK {
			break
		}
	}
	return hits, nil
}

func recallResourcesRAG(ctx context.Context, s *State, llm llmclient.Client, repos *store.Store) ([]ResourceHit, error) {
	resources, err := repos.Resources.List(ctx, s.Request.Scope)
	if err != nil {
		return nil, err
	}
	var entries []vectorindex.Embedded
	byID := make(map[string]*model.Resource, len(resources))
	for _, r := range resources {
		byID[r.ID] = r
		if len(r.CaptionEmbedding) > 0 {
			entries = append(entries, vectorindex.Embedded{ID: r.ID, Embedding: r.CaptionEmbedding})
		}
	}
	if len(entries) == 0 {
		return nil, nil
	}
	queryEmb, err := embedQuery(ctx, llm, s.activeQuery)
	if err != nil {
		return nil, nil
	}
	candidates := vectorindex.CosineTopK(queryEmb, entries, s.ResourceTopK)

	hits := make([]ResourceHit, 0, len(candidates))
	for _, cand := range candidates {
		r := byID[cand.ID]
		score := cand.Score
		hits = append(hits, ResourceHit{ID: r.ID, URL: r.URL, Caption: r.Caption, Score: &score})
	}
	return hits, nil
}

// recallResourcesLLM ranks only the resources that own an already-recalled
// item (spec.md §4.6 step 6's "filtered to resources owning the ranked
// items").
func recallResourcesLLM(ctx context.Context, s *State, llm llmclient.Client, repos *store.Store) ([]ResourceHit, error) {
	var resourceIDs []string
	for _, h := range s.itemHits {
		resourceIDs = append(resourceIDs, h.ResourceID)
	}
	resourceIDs = dedupe(resourceIDs)
	if len(resourceIDs) == 0 {
		return nil, nil
	}

	resources := make([]*model.Resource, 0, len(resourceIDs))
	for _, id := range resourceIDs {
		r, found, err := repos.Resources.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if found {
			resources = append(resources, r)
		}
	}
	if len(resources) == 0 {
		return nil, nil
	}

	prompt := s.Prompts.RecallResourcesPrompt(map[string]string{
		"query":                s.activeQuery,
		"top_k":                strconv.Itoa(s.ResourceTopK),
		"resources_data":       formatResources(resources),
		"conversation_history": formatMessages(s.Request.Messages),
		"retrieved_content":    formatItemHits(s.itemHits),
	})
	raw, err := llm.Summarize(ctx, "ranking", prompt, rankingSystemPrompt)
	if err != nil {
		return nil, nil
	}
	ids, err := parseIDList(raw)
	if err != nil {
		return nil, nil
	}

	byID := make(map[string]*model.Resource, len(resources))
	for _, r := range resources {
		byID[r.ID] = r
	}
	hits := make([]ResourceHit, 0, len(ids))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			continue
		}
		hits = append(hits, ResourceHit{ID: r.ID, URL: r.URL, Caption: r.Caption})
		if s.ResourceTopK > 0 && len(hits) >= s.ResourceTopK {
			break
		}
	}
	return hits, nil
}
