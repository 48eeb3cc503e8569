package retrieve

import (
	"context"
	"errors"

	"memu/internal/memu/llmclient"
	"memu/internal/memu/memuerr"
	"memu/internal/memu/model"
	"memu/internal/memu/store"
	"memu/internal/memu/workflow"
)

var (
	errNoJSONArray    = errors.New("retrieve: no JSON array found in response")
	errEmptyEmbedding = errors.New("retrieve: embedding call returned no vectors")
)

const intentionSystemPrompt = sufficiencySystemPrompt

// New builds the validated 7-step retrieve pipeline (spec.md §4.6). The
// same step sequence serves both the RAG and LLM ranking variants; each
// step dispatches on state.Method internally.
func New() (*workflow.Pipeline[State], error) {
	return workflow.New("retrieve",
		workflow.Step[State]{
			ID: "route_intention", Role: "route",
			Produces: []string{"active_query", "needs_retrieval"},
			Needs:    []workflow.Capability{workflow.CapabilityLLM},
			Handler:  routeIntentionStep,
		},
		workflow.Step[State]{
			ID: "route_category", Role: "recall",
			Requires: []string{"active_query", "needs_retrieval"},
			Produces: []string{"category_hits"},
			Needs:    []workflow.Capability{workflow.CapabilityLLM, workflow.CapabilityDB},
			Handler:  routeCategoryStep,
		},
		workflow.Step[State]{
			ID: "sufficiency_after_category", Role: "sufficiency",
			Requires: []string{"category_hits"},
			Produces: []string{"proceed_to_items"},
			Needs:    []workflow.Capability{workflow.CapabilityLLM},
			Handler:  sufficiencyAfterCategoryStep,
		},
		workflow.Step[State]{
			ID: "recall_items", Role: "recall",
			Requires: []string{"proceed_to_items"},
			Produces: []string{"item_hits"},
			Needs:    []workflow.Capability{workflow.CapabilityLLM, workflow.CapabilityDB},
			Handler:  recallItemsStep,
		},
		workflow.Step[State]{
			ID: "sufficiency_after_items", Role: "sufficiency",
			Requires: []string{"item_hits"},
			Produces: []string{"proceed_to_resources"},
			Needs:    []workflow.Capability{workflow.CapabilityLLM},
			Handler:  sufficiencyAfterItemsStep,
		},
		workflow.Step[State]{
			ID: "recall_resources", Role: "recall",
			Requires: []string{"proceed_to_resources"},
			Produces: []string{"resource_hits"},
			Needs:    []workflow.Capability{workflow.CapabilityLLM, workflow.CapabilityDB},
			Handler:  recallResourcesStep,
		},
		workflow.Step[State]{
			ID: "build_context", Role: "respond",
			Requires: []string{"resource_hits"},
			Produces: []string{"response"},
			Handler:  buildContextStep,
		},
	)
}

func routeIntentionStep(ctx context.Context, s *State, caps workflow.Capabilities) error {
	if len(s.Request.Messages) == 0 {
		return memuerr.Caller("route_intention", errors.New("retrieve: empty query list"))
	}
	llm := caps[workflow.CapabilityLLM].(llmclient.Client)

	s.originalQuery = s.Request.Messages[len(s.Request.Messages)-1].Content
	s.activeQuery = s.originalQuery
	s.needsRetrieval = true

	if !s.EnableIntentionRouting {
		return nil
	}
	prompt := s.Prompts.RouteIntentionPrompt(map[string]string{
		"query":        s.originalQuery,
		"context_info": "No content retrieved yet.",
	})
	raw, err := llm.Summarize(ctx, "sufficiency", prompt, intentionSystemPrompt)
	if err != nil {
		// Upstream failure defaults to RETRIEVE with the original query,
		// same as a parse failure (spec.md §4.6 step 1).
		return nil
	}
	retrieveMore, rewritten, ok := parseSufficiency(raw)
	if !ok {
		return nil
	}
	s.needsRetrieval = retrieveMore
	if len(s.Request.Messages) == 1 {
		// A single-message input has no context to rewrite against; force
		// reuse of the original query (spec.md §4.6 step 1).
		return nil
	}
	if rewritten != "" {
		s.activeQuery = rewritten
		s.nextQuery = rewritten
	}
	return nil
}

func routeCategoryStep(ctx context.Context, s *State, caps workflow.Capabilities) error {
	if !s.needsRetrieval || !s.EnableCategoryRecall {
		return nil
	}
	llm := caps[workflow.CapabilityLLM].(llmclient.Client)
	repos := caps[workflow.CapabilityDB].(*store.Store)

	var hits []CategoryHit
	var err error
	if s.Method == model.RetrieveMethodLLM {
		hits, err = routeCategoryLLM(ctx, s, llm, repos)
	} else {
		hits, err = routeCategoryRAG(ctx, s, llm, repos)
	}
	if err != nil {
		return memuerr.Upstream("route_category", err)
	}
	s.categoryHits = hits
	return nil
}

func sufficiencyAfterCategoryStep(ctx context.Context, s *State, caps workflow.Capabilities) error {
	if !s.needsRetrieval {
		s.proceedToItems = false
		return nil
	}
	llm := caps[workflow.CapabilityLLM].(llmclient.Client)
	s.proceedToItems = runSufficiency(ctx, s, llm, formatCategoryHits(s.categoryHits))
	return nil
}

func recallItemsStep(ctx context.Context, s *State, caps workflow.Capabilities) error {
	if !s.proceedToItems {
		return nil
	}
	llm := caps[workflow.CapabilityLLM].(llmclient.Client)
	repos := caps[workflow.CapabilityDB].(*store.Store)

	var hits []ItemHit
	var err error
	if s.Method == model.RetrieveMethodLLM {
		hits, err = recallItemsLLM(ctx, s, llm, repos)
	} else {
		hits, err = recallItemsRAG(ctx, s, llm, repos)
	}
	if err != nil {
		return memuerr.Upstream("recall_items", err)
	}
	s.itemHits = hits
	return nil
}

func sufficiencyAfterItemsStep(ctx context.Context, s *State, caps workflow.Capabilities) error {
	if !s.proceedToItems {
		s.proceedToResources = false
		return nil
	}
	llm := caps[workflow.CapabilityLLM].(llmclient.Client)
	s.proceedToResources = runSufficiency(ctx, s, llm, formatItemHits(s.itemHits))
	return nil
}

func recallResourcesStep(ctx context.Context, s *State, caps workflow.Capabilities) error {
	if !s.proceedToResources || !s.EnableResourceRecall {
		return nil
	}
	llm := caps[workflow.CapabilityLLM].(llmclient.Client)
	repos := caps[workflow.CapabilityDB].(*store.Store)

	var hits []ResourceHit
	var err error
	if s.Method == model.RetrieveMethodLLM {
		hits, err = recallResourcesLLM(ctx, s, llm, repos)
	} else {
		hits, err = recallResourcesRAG(ctx, s, llm, repos)
	}
	if err != nil {
		return memuerr.Upstream("recall_resources", err)
	}
	s.resourceHits = hits
	return nil
}

func buildContextStep(_ context.Context, s *State, _ workflow.Capabilities) error {
	s.Response = Response{
		NeedsRetrieval: s.needsRetrieval,
		OriginalQuery:  s.originalQuery,
		RewrittenQuery: s.activeQuery,
		NextQuery:      s.nextQuery,
		Categories:     s.categoryHits,
		Items:          s.itemHits,
		Resources:      s.resourceHits,
	}
	return nil
}
