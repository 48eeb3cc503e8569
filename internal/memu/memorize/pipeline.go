package memorize

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"memu/internal/memu/fetch"
	"memu/internal/memu/llmclient"
	"memu/internal/memu/memuerr"
	"memu/internal/memu/model"
	"memu/internal/memu/prompts"
	"memu/internal/memu/refs"
	"memu/internal/memu/store"
	"memu/internal/memu/workflow"
)

// IO bundles the fetcher every memorize run needs with the optional video
// frame extractor: a nil ExtractFrame degrades video preprocessing to a
// pass-through rather than failing the run.
type IO struct {
	Fetcher      fetch.Fetcher
	ExtractFrame func(ctx context.Context, videoPath string) (framePath string, err error)
}

var errNoJSONPayload = errors.New("memorize: no JSON payload found in response")

func upstreamPreprocess(err error) error { return memuerr.Upstream("preprocess_multimodal", err) }

const (
	extractionSystemPrompt = "You are a precise memory extraction engine. Respond only in the requested XML format."
	summarySystemPrompt    = "You are a meticulous profile editor merging new facts into an existing summary."
)

// New builds the validated 7-step memorize pipeline (spec.md §4.5).
func New() (*workflow.Pipeline[State], error) {
	return workflow.New("memorize",
		workflow.Step[State]{
			ID: "ingest_resource", Role: "ingest",
			Produces: []string{"local_path", "raw_text"},
			Needs:    []workflow.Capability{workflow.CapabilityIO},
			Handler:  ingestResourceStep,
		},
		workflow.Step[State]{
			ID: "preprocess_multimodal", Role: "preprocess",
			Requires: []string{"local_path", "raw_text"},
			Produces: []string{"segments"},
			Needs:    []workflow.Capability{workflow.CapabilityLLM, workflow.CapabilityIO},
			Handler:  preprocessStep,
		},
		workflow.Step[State]{
			ID: "extract_items", Role: "extract",
			Requires: []string{"segments"},
			Produces: []string{"extracted"},
			Needs:    []workflow.Capability{workflow.CapabilityLLM},
			Handler:  extractItemsStep,
		},
		workflow.Step[State]{
			ID: "dedupe_merge", Role: "dedupe",
			Requires: []string{"extracted"},
			Produces: []string{"deduped"},
			Handler:  dedupeMergeStep,
		},
		workflow.Step[State]{
			ID: "categorize_items", Role: "categorize",
			Requires: []string{"deduped"},
			Produces: []string{"items", "touched_categories", "resources"},
			Needs:    []workflow.Capability{workflow.CapabilityLLM, workflow.CapabilityDB},
			Handler:  categorizeItemsStep,
		},
		workflow.Step[State]{
			ID: "persist_index", Role: "persist",
			Requires: []string{"items", "touched_categories"},
			Produces: []string{"summaries"},
			Needs:    []workflow.Capability{workflow.CapabilityLLM, workflow.CapabilityDB},
			Handler:  persistIndexStep,
		},
		workflow.Step[State]{
			ID: "build_response", Role: "respond",
			Requires: []string{"summaries"},
			Produces: []string{"response"},
			Handler:  buildResponseStep,
		},
	)
}

func ingestResourceStep(ctx context.Context, s *State, caps workflow.Capabilities) error {
	io := caps[workflow.CapabilityIO].(IO)
	localPath, text, err := io.Fetcher.Fetch(ctx, s.Request.URL, string(s.Request.Modality))
	if err != nil {
		return memuerr.Upstream("ingest_resource", err)
	}
	s.LocalPath = localPath
	s.RawText = text
	return nil
}

func preprocessStep(ctx context.Context, s *State, caps workflow.Capabilities) error {
	llm := caps[workflow.CapabilityLLM].(llmclient.Client)
	io := caps[workflow.CapabilityIO].(IO)
	return preprocess(ctx, s, llm, io)
}

func extractItemsStep(ctx context.Context, s *State, caps workflow.Capabilities) error {
	llm := caps[workflow.CapabilityLLM].(llmclient.Client)
	memoryTypes := s.MemoryTypes
	if len(memoryTypes) == 0 {
		memoryTypes = model.AllMemoryTypes()
	}

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	for segIdx := range s.Segments {
		segIdx := segIdx
		seg := s.Segments[segIdx]
		for _, mt := range memoryTypes {
			mt := mt
			g.Go(func() error {
				prompt := s.Prompts.Extract(mt, map[string]string{"content": seg.Text})
				raw, err := llm.Summarize(gctx, "extraction", prompt, extractionSystemPrompt)
				if err != nil {
					return memuerr.Upstream("extract_items", err)
				}
				memories, err := parseExtraction(raw)
				if err != nil {
					// Parse failure drops this memory-type result for this
					// segment; it never aborts the run (spec.md §7).
					return nil
				}
				mu.Lock()
				for _, m := range memories {
					content := strings.TrimSpace(m.Content)
					if content == "" {
						continue
					}
					s.Extracted = append(s.Extracted, ExtractedMemory{
						MemoryType: mt, Content: content, Categories: m.Categories,
						SegmentIndex: segIdx, SegmentStart: seg.StartLine, SegmentEnd: seg.EndLine,
					})
				}
				mu.Unlock()
				return nil
			})
		}
	}
	return g.Wait()
}

// dedupeMergeStep is a pass-through hook: content-hash dedup happens later,
// inside CreateOrReinforce, per-item and scope-aware. No pre-merge pass is
// needed ahead of that (spec.md §4.5 step 4 names this a pass-through hook
// for future cross-item merge logic).
func dedupeMergeStep(_ context.Context, _ *State, _ workflow.Capabilities) error {
	return nil
}

func categorizeItemsStep(ctx context.Context, s *State, caps workflow.Capabilities) error {
	llm := caps[workflow.CapabilityLLM].(llmclient.Client)
	repos := caps[workflow.CapabilityDB].(*store.Store)
	s.TouchedCategories = map[string]bool{}
	s.NewItemsByCategory = map[string][]*model.MemoryItem{}

	if err := createSegmentResources(ctx, s, repos, llm); err != nil {
		return err
	}

	for _, extracted := range s.Extracted {
		embeddings, err := llm.Embed(ctx, "embedding", []string{extracted.Content})
		if err != nil {
			return memuerr.Upstream("categorize_items", err)
		}

		now := time.Now().UTC()
		item := &model.MemoryItem{
			Record:     model.Record{Scope: s.Request.Scope},
			ResourceID: s.Resources[extracted.SegmentIndex].ID,
			MemoryType: extracted.MemoryType,
			Summary:    extracted.Content,
			Embedding:  embeddings[0],
			HappenedAt: &now,
		}

		result, reinforced, err := repos.Items.CreateOrReinforce(ctx, item)
		if err != nil {
			return memuerr.Upstream("categorize_items", err)
		}
		s.Items = append(s.Items, result)
		if reinforced {
			// A reinforced item already has its category links from when
			// it was first created; re-linking would duplicate effort for
			// no benefit (spec.md §4.5 step 5's skip-on-reinforce rule).
			continue
		}

		categoryIDs, err := resolveCategories(ctx, repos, extracted, item.Embedding, s.CategoryAssignmentThreshold)
		if err != nil {
			return memuerr.Upstream("categorize_items", err)
		}
		for _, categoryID := range categoryIDs {
			rel := &model.CategoryItem{Record: model.Record{Scope: s.Request.Scope}, ItemID: result.ID, CategoryID: categoryID}
			if err := repos.CategoryItems.Create(ctx, rel); err != nil {
				// A category-item link failure is a data-integrity
				// violation, not an upstream failure: the item itself is
				// already durably persisted, so we skip the relation and
				// continue (spec.md §7).
				continue
			}
			s.TouchedCategories[categoryID] = true
			s.NewItemsByCategory[categoryID] = append(s.NewItemsByCategory[categoryID], result)
		}
	}
	return nil
}

// createSegmentResources creates one Resource per preprocessed segment,
// embedding and attaching its caption via SetCaption when the segment
// produced one (spec.md §4.5 step 5, invariant #3: image/video resources
// carry a non-empty caption whenever preprocessing succeeded).
func createSegmentResources(ctx context.Context, s *State, repos *store.Store, llm llmclient.Client) error {
	s.Resources = make([]*model.Resource, len(s.Segments))
	for i, seg := range s.Segments {
		resource := &model.Resource{
			Record:    model.Record{Scope: s.Request.Scope},
			URL:       s.Request.URL,
			Modality:  s.Request.Modality,
			LocalPath: s.LocalPath,
		}
		if err := repos.Resources.Create(ctx, resource); err != nil {
			return memuerr.Upstream("categorize_items", err)
		}
		if seg.Caption != "" {
			embeddings, err := llm.Embed(ctx, "embedding", []string{seg.Caption})
			if err != nil {
				return memuerr.Upstream("categorize_items", err)
			}
			if err := repos.Resources.SetCaption(ctx, resource.ID, seg.Caption, embeddings[0]); err != nil {
				return memuerr.Upstream("categorize_items", err)
			}
			resource.Caption = seg.Caption
			resource.CaptionEmbedding = embeddings[0]
		}
		s.Resources[i] = resource
	}
	return nil
}

// resolveCategories maps an extracted memory's caller-suggested category
// names onto real category ids, by exact name first and falling back to a
// vector-similarity match against the item's own embedding when no name
// matches and the best candidate clears threshold.
func resolveCategories(ctx context.Context, repos *store.Store, extracted ExtractedMemory, embedding []float32, threshold float64) ([]string, error) {
	var ids []string
	seen := map[string]bool{}
	for _, name := range extracted.Categories {
		cat, found, err := repos.Categories.ByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if found && !seen[cat.ID] {
			ids = append(ids, cat.ID)
			seen[cat.ID] = true
		}
	}
	if len(ids) == 0 && len(embedding) > 0 {
		// No caller-suggested category name matched; fall back to the
		// nearest category by embedding similarity, accepting it only if
		// it clears the configured threshold (spec.md §4.5 step 5).
		candidates, err := repos.Categories.VectorSearch(ctx, embedding, 1, model.Scope{})
		if err != nil {
			return nil, err
		}
		if len(candidates) > 0 && candidates[0].Score >= threshold {
			ids = append(ids, candidates[0].ID)
		}
	}
	return ids, nil
}

func persistIndexStep(ctx context.Context, s *State, caps workflow.Capabilities) error {
	llm := caps[workflow.CapabilityLLM].(llmclient.Client)
	repos := caps[workflow.CapabilityDB].(*store.Store)

	for categoryID := range s.TouchedCategories {
		category, found, err := repos.Categories.Get(ctx, categoryID)
		if err != nil {
			return memuerr.Upstream("persist_index", err)
		}
		if !found {
			continue
		}

		newItems := s.NewItemsByCategory[categoryID]
		if len(newItems) == 0 {
			continue
		}

		rels, err := repos.CategoryItems.ListByCategory(ctx, categoryID, s.Request.Scope)
		if err != nil {
			return memuerr.Upstream("persist_index", err)
		}
		items, err := loadItems(ctx, repos, rels)
		if err != nil {
			return memuerr.Upstream("persist_index", err)
		}

		targetLength := s.SummaryTargetLength
		var override prompts.Spec
		if ov, ok := s.CategoryOverrides[category.Name]; ok {
			override = ov.Prompt
			if ov.TargetLength > 0 {
				targetLength = ov.TargetLength
			}
		}

		// new_memory_items_text carries only the items newly linked to this
		// category this run (spec.md §4.5 step 6); items holds every item
		// the category has ever accumulated, used below only to resolve
		// ref ids the regenerated summary cites back to their items.
		newItemsText := buildNewItemsText(newItems, s.EnableItemReferences)
		prompt := s.Prompts.SummarizeCategory(override, map[string]string{
			"category":              category.Name,
			"original_content":      category.Summary,
			"new_memory_items_text": newItemsText,
			"target_length":         targetLengthText(targetLength),
		})
		summary, err := llm.Summarize(ctx, "summary", prompt, summarySystemPrompt)
		if err != nil {
			return memuerr.Upstream("persist_index", err)
		}

		if err := repos.Categories.UpdateSummary(ctx, categoryID, summary); err != nil {
			return memuerr.Upstream("persist_index", err)
		}

		if s.EnableItemReferences {
			for _, id := range refs.Extract(summary) {
				// refs.Extract returns the short ids written into the
				// prompt; look up by matching item whose ShortID equals id.
				for _, item := range items {
					if model.ShortID(item.ID) == id {
						if err := repos.Items.SetRefID(ctx, item.ID, id); err != nil {
							return memuerr.Upstream("persist_index", err)
						}
					}
				}
			}
		}
	}
	return nil
}

func loadItems(ctx context.Context, repos *store.Store, rels []*model.CategoryItem) ([]*model.MemoryItem, error) {
	items := make([]*model.MemoryItem, 0, len(rels))
	for _, rel := range rels {
		item, found, err := repos.Items.Get(ctx, rel.ItemID)
		if err != nil {
			return nil, err
		}
		if found {
			items = append(items, item)
		}
	}
	return items, nil
}

func buildNewItemsText(items []*model.MemoryItem, withRefs bool) string {
	if !withRefs {
		var b strings.Builder
		for _, item := range items {
			b.WriteString("- ")
			b.WriteString(item.Summary)
			b.WriteByte('\n')
		}
		return b.String()
	}
	citable := make([]refs.CitableItem, len(items))
	for i, item := range items {
		citable[i] = refs.CitableItem{ID: model.ShortID(item.ID), Summary: item.Summary}
	}
	return refs.BuildReferenceMap(citable)
}

func targetLengthText(n int) string {
	if n <= 0 {
		n = 400
	}
	return strconv.Itoa(n)
}

// buildResponseStep materializes the response, returning the singular
// Resource when preprocessing produced exactly one segment/resource and
// the plural Resources otherwise (spec.md §4.5 step 7).
func buildResponseStep(_ context.Context, s *State, _ workflow.Capabilities) error {
	resp := Response{Items: s.Items}
	if len(s.Resources) == 1 {
		resp.Resource = s.Resources[0]
	} else {
		resp.Resources = s.Resources
	}
	s.Response = resp
	return nil
}
