package memorize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memu/internal/memu/fetch"
	"memu/internal/memu/llmclient"
	"memu/internal/memu/model"
	"memu/internal/memu/prompts"
	"memu/internal/memu/store"
	"memu/internal/memu/store/memstore"
	"memu/internal/memu/workflow"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resource.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	categories := memstore.NewCategories()
	embed := func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0}, nil
	}
	require.NoError(t, categories.EnsureCategories(context.Background(),
		[]store.CategoryDefinition{{Name: "General", Description: "catch-all"}}, embed))

	return &store.Store{
		Resources:     memstore.NewResources(),
		Items:         memstore.NewItems(),
		Categories:    categories,
		CategoryItems: memstore.NewCategoryItems(),
	}
}

func fixedXMLExtraction(category string) func(prompt, systemPrompt string) (string, error) {
	return func(prompt, systemPrompt string) (string, error) {
		if systemPrompt == extractionSystemPrompt {
			return `<profile><memory><content>User loves coffee</content><categories><category>` +
				category + `</category></categories></memory></profile>`, nil
		}
		return "Updated summary.", nil
	}
}

func runMemorize(t *testing.T, s *State, repos *store.Store, llm *llmclient.Fake) {
	t.Helper()
	pipeline, err := New()
	require.NoError(t, err)

	caps := workflow.Capabilities{
		workflow.CapabilityLLM: llmclient.Client(llm),
		workflow.CapabilityIO:  IO{Fetcher: fetch.NewLocalFS()},
		workflow.CapabilityDB:  repos,
	}
	require.NoError(t, pipeline.Run(context.Background(), s, caps))
}

func newState(url string, repos *store.Store) *State {
	return &State{
		Request:                     Request{URL: url, Modality: model.ModalityDocument, Scope: model.Scope{"user_id": "u1"}},
		MemoryTypes:                 []model.MemoryType{model.MemoryTypeProfile},
		Prompts:                     prompts.NewSet(false),
		SummaryTargetLength:         200,
		CategoryAssignmentThreshold: 0.5,
	}
}

func TestMemorizeDedupsAcrossRuns(t *testing.T) {
	repos := newTestStore(t)
	llm := llmclient.NewFake(2)
	llm.SummarizeFn = fixedXMLExtraction("General")
	path := writeTempFile(t, "the user talked about their coffee habit")

	first := newState(path, repos)
	runMemorize(t, first, repos, llm)
	require.Len(t, first.Response.Items, 1)
	assert.Equal(t, 1, first.Response.Items[0].ReinforcementCount())

	second := newState(path, repos)
	runMemorize(t, second, repos, llm)
	require.Len(t, second.Response.Items, 1)
	assert.Equal(t, first.Response.Items[0].ID, second.Response.Items[0].ID)
	assert.Equal(t, 2, second.Response.Items[0].ReinforcementCount())

	all, err := repos.Items.List(context.Background(), model.Scope{"user_id": "u1"})
	require.NoError(t, err)
	assert.Len(t, all, 1, "reinforcement must not create a second item")
}

func TestMemorizeSkipsCategoryRelinkOnReinforce(t *testing.T) {
	repos := newTestStore(t)
	llm := llmclient.NewFake(2)
	llm.SummarizeFn = fixedXMLExtraction("General")
	path := writeTempFile(t, "the user talked about their coffee habit")

	first := newState(path, repos)
	runMemorize(t, first, repos, llm)
	assert.Len(t, first.TouchedCategories, 1, "first run links the new item to its category")

	second := newState(path, repos)
	runMemorize(t, second, repos, llm)
	assert.Len(t, second.TouchedCategories, 0, "reinforce path must not re-link or re-summarize")
}

func TestMemorizeUnknownCategoryFallsBackToVectorMatch(t *testing.T) {
	repos := newTestStore(t)
	llm := llmclient.NewFake(2)
	llm.SummarizeFn = fixedXMLExtraction("Nonexistent Category Name")
	path := writeTempFile(t, "the user talked about their coffee habit")

	s := newState(path, repos)
	runMemorize(t, s, repos, llm)
	require.Len(t, s.Response.Items, 1)
	assert.Len(t, s.TouchedCategories, 1, "no name match should still fall back to the nearest category by embedding")
}

// TestMemorizeConversationSegmentsProduceOneResourceEach covers spec.md §4.5
// scenario S6: a 3-segment conversation must create exactly 3 Resource rows,
// each captioned, and the response must carry them under the plural
// Resources field rather than the singular Resource.
func TestMemorizeConversationSegmentsProduceOneResourceEach(t *testing.T) {
	repos := newTestStore(t)
	llm := llmclient.NewFake(2)
	llm.SummarizeFn = func(prompt, systemPrompt string) (string, error) {
		switch systemPrompt {
		case preprocessSystemPrompt:
			return `{"segments": [
				{"start": 0, "end": 2, "caption": "Segment one"},
				{"start": 2, "end": 4, "caption": "Segment two"},
				{"start": 4, "end": 6, "caption": "Segment three"}
			]}`, nil
		case extractionSystemPrompt:
			return `<profile><memory><content>User loves coffee</content><categories><category>General</category></categories></memory></profile>`, nil
		default:
			return "Updated summary.", nil
		}
	}

	transcript := "line0\nline1\nline2\nline3\nline4\nline5"
	path := writeTempFile(t, transcript)

	s := newState(path, repos)
	s.Request.Modality = model.ModalityConversation
	runMemorize(t, s, repos, llm)

	require.Len(t, s.Segments, 3)
	require.Len(t, s.Response.Resources, 3, "one Resource per segment")
	assert.Nil(t, s.Response.Resource, "plural run must not also set the singular field")

	captions := map[string]bool{}
	for _, r := range s.Response.Resources {
		require.NotEmpty(t, r.Caption)
		require.NotEmpty(t, r.CaptionEmbedding)
		captions[r.Caption] = true
	}
	assert.True(t, captions["Segment one"])
	assert.True(t, captions["Segment two"])
	assert.True(t, captions["Segment three"])

	all, err := repos.Resources.List(context.Background(), model.Scope{"user_id": "u1"})
	require.NoError(t, err)
	assert.Len(t, all, 3, "exactly three Resource rows must be persisted")
}

// TestMemorizeDocumentWiresCaptionOntoResource confirms a document-modality
// run's <processed_content>/<caption> tags flow through to the persisted
// Resource via SetCaption, not just the in-memory response.
func TestMemorizeDocumentWiresCaptionOntoResource(t *testing.T) {
	repos := newTestStore(t)
	llm := llmclient.NewFake(2)
	llm.SummarizeFn = func(prompt, systemPrompt string) (string, error) {
		switch systemPrompt {
		case preprocessSystemPrompt:
			return "<processed_content>the user talked about their coffee habit</processed_content>" +
				"<caption>User's coffee habit</caption>", nil
		case extractionSystemPrompt:
			return `<profile><memory><content>User loves coffee</content><categories><category>General</category></categories></memory></profile>`, nil
		default:
			return "Updated summary.", nil
		}
	}
	path := writeTempFile(t, "the user talked about their coffee habit")

	s := newState(path, repos)
	runMemorize(t, s, repos, llm)

	require.NotNil(t, s.Response.Resource)
	assert.Equal(t, "User's coffee habit", s.Response.Resource.Caption)
	assert.NotEmpty(t, s.Response.Resource.CaptionEmbedding)

	stored, found, err := repos.Resources.Get(context.Background(), s.Response.Resource.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "User's coffee habit", stored.Caption, "caption must be durably persisted via SetCaption")
	assert.NotEmpty(t, stored.CaptionEmbedding)
}

// TestPersistIndexSummaryPromptOnlyIncludesNewItems runs memorize twice
// against the same category and asserts the second run's summary-regen
// prompt carries only the second run's newly linked item content, not the
// first run's (spec.md §4.5 step 6: "the new (short_id, summary) tuples").
func TestPersistIndexSummaryPromptOnlyIncludesNewItems(t *testing.T) {
	repos := newTestStore(t)
	var prompts []string
	call := 0
	llm := llmclient.NewFake(2)
	llm.SummarizeFn = func(prompt, systemPrompt string) (string, error) {
		switch systemPrompt {
		case extractionSystemPrompt:
			call++
			content := fmt.Sprintf("User loves coffee %d", call)
			return `<profile><memory><content>` + content + `</content><categories><category>General</category></categories></memory></profile>`, nil
		case summarySystemPrompt:
			prompts = append(prompts, prompt)
			return "Updated summary.", nil
		default:
			return "Updated summary.", nil
		}
	}

	first := newState(writeTempFile(t, "first document content"), repos)
	runMemorize(t, first, repos, llm)

	second := newState(writeTempFile(t, "second document content"), repos)
	runMemorize(t, second, repos, llm)

	require.Len(t, prompts, 2, "each run with newly linked items regenerates the touched category's summary")
	assert.True(t, strings.Contains(prompts[0], "User loves coffee 1"))
	assert.False(t, strings.Contains(prompts[1], "User loves coffee 1"),
		"second run's prompt must not include the first run's already-summarized item")
	assert.True(t, strings.Contains(prompts[1], "User loves coffee 2"))
}
