package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memu/internal/memu/config"
	"memu/internal/memu/llmclient"
	"memu/internal/memu/memorize"
	"memu/internal/memu/model"
	"memu/internal/memu/retrieve"
)

const testConfigYAML = `
backend: inmemory
llm_profiles:
  default:
    base_url: http://unused
    model: unused
  embedding:
    base_url: http://unused
    model: unused
categories:
  - name: General
    description: catch-all
memory_types: [profile]
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memu.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resource.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func fixedXMLExtraction() func(prompt, systemPrompt string) (string, error) {
	return func(prompt, systemPrompt string) (string, error) {
		if systemPrompt == "You are a precise memory extraction engine. Respond only in the requested XML format." {
			return `<profile><memory><content>User loves coffee</content><categories><category>General</category></categories></memory></profile>`, nil
		}
		return "Updated summary.", nil
	}
}

func newTestService(t *testing.T, llm *llmclient.Fake) *Service {
	t.Helper()
	cfg := testConfig(t)
	svc, err := New(context.Background(), cfg, WithLLMClient(llm))
	require.NoError(t, err)
	return svc
}

func TestServiceMemorizeThenRetrieveRoundTrip(t *testing.T) {
	llm := llmclient.NewFake(2)
	llm.SummarizeFn = fixedXMLExtraction()
	svc := newTestService(t, llm)

	path := writeTempFile(t, "the user talked about their coffee habit")
	resp, err := svc.Memorize(context.Background(), memorize.Request{
		URL:      path,
		Modality: model.ModalityDocument,
		Scope:    model.Scope{"user_id": "u1"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)

	retResp, err := svc.Retrieve(context.Background(), retrieve.Request{
		Messages: []retrieve.Message{{Role: "user", Content: "what does the user like to drink"}},
		Scope:    model.Scope{"user_id": "u1"},
	}, model.RetrieveMethodRAG)
	require.NoError(t, err)
	assert.True(t, retResp.NeedsRetrieval)
}

func TestServiceEmbedsCategoriesExactlyOnce(t *testing.T) {
	llm := llmclient.NewFake(2)
	llm.SummarizeFn = fixedXMLExtraction()
	svc := newTestService(t, llm)

	path := writeTempFile(t, "the user talked about their coffee habit")
	req := memorize.Request{URL: path, Modality: model.ModalityDocument, Scope: model.Scope{"user_id": "u1"}}

	_, err := svc.Memorize(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.Memorize(context.Background(), req)
	require.NoError(t, err)

	cats, err := svc.repos.Categories.List(context.Background(), model.Scope{})
	require.NoError(t, err)
	assert.Len(t, cats, 1, "EnsureCategories must not run a second time")
}

func TestServiceRejectsUnsupportedBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend = "nonsense"
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}
