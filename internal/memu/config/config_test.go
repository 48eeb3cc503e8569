package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memu/internal/memu/model"
)

const sampleYAML = `
backend: inmemory
llm_profiles:
  default:
    base_url: http://localhost:8080
    model: gpt-oss
  embedding:
    base_url: http://localhost:8080
    model: embed-small
categories:
  - name: Preferences
    description: likes and dislikes
  - name: Routine
    description: daily habits
    summary_prompt: "Summarize routine facts tersely."
    target_length: 120
enable_item_references: true
retrieve:
  method: rag
  item_ranking: salience
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memu.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendInMemory, cfg.Backend)
	assert.Equal(t, defaultCategoryAssignmentThreshold, cfg.CategoryAssignmentThreshold)
	assert.Equal(t, defaultSummaryTargetLength, cfg.SummaryTargetLength)
	assert.Equal(t, model.AllMemoryTypes(), cfg.MemoryTypes)
	assert.Equal(t, defaultTopK, cfg.Retrieve.Category.TopK)
	assert.Equal(t, defaultTopK, cfg.Retrieve.Item.TopK)
	assert.Equal(t, defaultTopK, cfg.Retrieve.Resource.TopK)
	assert.Equal(t, model.RankingSalience, cfg.Retrieve.ItemRanking)
}

func TestLoadRejectsMissingCategories(t *testing.T) {
	path := writeConfig(t, `
backend: inmemory
llm_profiles:
  default:
    base_url: http://localhost:8080
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsRelationalBackendWithoutConnectionString(t *testing.T) {
	path := writeConfig(t, `
backend: relational-with-native-vectors
llm_profiles:
  default:
    base_url: http://localhost:8080
categories:
  - name: Preferences
    description: likes and dislikes
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestCategoryOverridesOnlyIncludesConfiguredCategories(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	overrides := cfg.CategoryOverrides()
	require.Contains(t, overrides, "Routine")
	assert.Equal(t, 120, overrides["Routine"].TargetLength)
	assert.NotContains(t, overrides, "Preferences")
}

func TestPromptSetAppliesOverrides(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.ExtractionPrompts = map[model.MemoryType]string{model.MemoryTypeProfile: "custom extraction prompt"}

	set := cfg.PromptSet()
	assert.Equal(t, "custom extraction prompt", set.Extract(model.MemoryTypeProfile, nil))
}
