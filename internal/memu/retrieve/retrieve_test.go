package retrieve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memu/internal/memu/llmclient"
	"memu/internal/memu/model"
	"memu/internal/memu/prompts"
	"memu/internal/memu/store"
	"memu/internal/memu/store/memstore"
	"memu/internal/memu/workflow"
)

func newRAGState(messages []Message) *State {
	return &State{
		Request:                 Request{Messages: messages, Scope: model.Scope{"user_id": "u1"}},
		Method:                  model.RetrieveMethodRAG,
		Prompts:                 prompts.NewSet(false),
		EnableIntentionRouting:  true,
		EnableCategoryRecall:    true,
		EnableSufficiencyChecks: false,
		EnableResourceRecall:    true,
		CategoryTopK:            5,
		ItemTopK:                5,
		ResourceTopK:            5,
		ItemRanking:             model.RankingSimilarity,
		RecencyHalfLifeDays:     30,
	}
}

func run(t *testing.T, s *State, llm *llmclient.Fake, repos *store.Store) {
	t.Helper()
	pipeline, err := New()
	require.NoError(t, err)
	caps := workflow.Capabilities{
		workflow.CapabilityLLM: llmclient.Client(llm),
		workflow.CapabilityDB:  repos,
	}
	require.NoError(t, pipeline.Run(context.Background(), s, caps))
}

func TestRetrieveRejectsEmptyQueryList(t *testing.T) {
	s := newRAGState(nil)
	repos := &store.Store{Resources: memstore.NewResources(), Items: memstore.NewItems(), Categories: memstore.NewCategories(), CategoryItems: memstore.NewCategoryItems()}
	llm := llmclient.NewFake(4)

	pipeline, err := New()
	require.NoError(t, err)
	caps := workflow.Capabilities{workflow.CapabilityLLM: llmclient.Client(llm), workflow.CapabilityDB: repos}
	err = pipeline.Run(context.Background(), s, caps)
	require.Error(t, err)
}

func TestRetrieveStopsEarlyOnNoRetrieveDecision(t *testing.T) {
	s := newRAGState([]Message{{Role: "user", Content: "what coffee do I like"}})
	s.EnableSufficiencyChecks = true
	llm := llmclient.NewFake(4)
	llm.SummarizeFn = func(prompt, systemPrompt string) (string, error) {
		return "<decision>NO_RETRIEVE</decision>", nil
	}
	repos := &store.Store{Resources: memstore.NewResources(), Items: memstore.NewItems(), Categories: memstore.NewCategories(), CategoryItems: memstore.NewCategoryItems()}

	run(t, s, llm, repos)

	assert.False(t, s.Response.NeedsRetrieval)
	assert.Equal(t, s.Response.OriginalQuery, s.Response.RewrittenQuery)
	assert.Empty(t, s.Response.Categories)
	assert.Empty(t, s.Response.Items)
	assert.Empty(t, s.Response.Resources)
}

func TestRetrieveRAGRecallsCategoryItemAndResource(t *testing.T) {
	const topic = "user loves coffee"
	query := []Message{{Role: "user", Content: topic}}
	s := newRAGState(query)

	categories := memstore.NewCategories()
	fake := llmclient.NewFake(4)
	require.NoError(t, categories.EnsureCategories(context.Background(),
		[]store.CategoryDefinition{{Name: "Preferences", Description: "likes and dislikes"}},
		func(ctx context.Context, text string) ([]float32, error) {
			v, err := fake.Embed(ctx, "embedding", []string{text})
			return v[0], err
		}))
	cats, err := categories.List(context.Background(), model.Scope{})
	require.NoError(t, err)
	require.Len(t, cats, 1)
	require.NoError(t, categories.UpdateSummary(context.Background(), cats[0].ID, topic))

	items := memstore.NewItems()
	itemEmb, err := fake.Embed(context.Background(), "embedding", []string{topic})
	require.NoError(t, err)
	item := &model.MemoryItem{Record: model.Record{Scope: model.Scope{"user_id": "u1"}}, MemoryType: model.MemoryTypeProfile, Summary: topic, Embedding: itemEmb[0]}
	_, _, err = items.CreateOrReinforce(context.Background(), item)
	require.NoError(t, err)

	resources := memstore.NewResources()
	resource := &model.Resource{Record: model.Record{Scope: model.Scope{"user_id": "u1"}}, URL: "file:///coffee.txt", Modality: model.ModalityDocument, CaptionEmbedding: itemEmb[0]}
	require.NoError(t, resources.Create(context.Background(), resource))

	repos := &store.Store{Resources: resources, Items: items, Categories: categories, CategoryItems: memstore.NewCategoryItems()}

	run(t, s, fake, repos)

	require.NotEmpty(t, s.Response.Categories)
	assert.Equal(t, "Preferences", s.Response.Categories[0].Name)
	require.NotNil(t, s.Response.Categories[0].Score)

	require.NotEmpty(t, s.Response.Items)
	assert.Equal(t, topic, s.Response.Items[0].Summary)
	require.NotNil(t, s.Response.Items[0].Score)

	require.NotEmpty(t, s.Response.Resources)
	assert.Equal(t, resource.ID, s.Response.Resources[0].ID)
}
