package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"memu/internal/memu/model"
)

func TestComposeLiteralSubstitutesVars(t *testing.T) {
	spec := Spec{Literal: "hello {name}"}
	got := Compose(spec, nil, map[string]string{"name": "world"})
	assert.Equal(t, "hello world", got)
}

func TestComposeLiteralLeavesUnknownPlaceholderUntouched(t *testing.T) {
	spec := Spec{Literal: "hello {missing}"}
	got := Compose(spec, nil, map[string]string{})
	assert.Equal(t, "hello {missing}", got)
}

func TestComposeEscapesBracesInsideSubstitutedValue(t *testing.T) {
	spec := Spec{Literal: "value: {raw}"}
	got := Compose(spec, nil, map[string]string{"raw": "has {braces} inside"})
	assert.Equal(t, `value: has \{braces\} inside`, got)
}

func TestComposeBlockMapOrdersByOrdinalAndSkipsEmpty(t *testing.T) {
	defaults := BlockMap{
		"second": {Ordinal: 2, Prompt: "B"},
		"first":  {Ordinal: 1, Prompt: "A"},
		"empty":  {Ordinal: 3, Prompt: ""},
	}
	got := Compose(Spec{Blocks: BlockMap{}}, defaults, nil)
	assert.Equal(t, "A\n\nB", got)
}

func TestComposeBlockMapOverrideReplacesDefaultText(t *testing.T) {
	defaults := BlockMap{"objective": {Ordinal: 1, Prompt: "default"}}
	override := BlockMap{"objective": {Prompt: "custom"}}
	got := Compose(Spec{Blocks: override}, defaults, nil)
	assert.Equal(t, "custom", got)
}

func TestComposeBlockMapOverrideCanReorder(t *testing.T) {
	defaults := BlockMap{
		"a": {Ordinal: 1, Prompt: "A"},
		"b": {Ordinal: 2, Prompt: "B"},
	}
	override := BlockMap{"a": {Ordinal: 3}}
	got := Compose(Spec{Blocks: override}, defaults, nil)
	assert.Equal(t, "B\n\nA", got)
}

func TestExtractionBlocksUsesMemoryTypeRootTag(t *testing.T) {
	rendered := Compose(Spec{}, ExtractionBlocks(model.MemoryTypeBehavior), map[string]string{"content": "segment text"})
	assert.True(t, strings.Contains(rendered, "<behaviors>"))
	assert.True(t, strings.Contains(rendered, "segment text"))
}

func TestCategorySummaryBlocksWithRefsMentionsCitations(t *testing.T) {
	withRefs := Compose(Spec{}, CategorySummaryBlocks(true), map[string]string{
		"category": "Personal Info", "original_content": "x", "new_memory_items_text": "y", "target_length": "200",
	})
	assert.True(t, strings.Contains(withRefs, "[ref:ITEM_ID]"))

	withoutRefs := Compose(Spec{}, CategorySummaryBlocks(false), map[string]string{
		"category": "Personal Info", "original_content": "x", "new_memory_items_text": "y", "target_length": "200",
	})
	assert.False(t, strings.Contains(withoutRefs, "[ref:ITEM_ID]"))
}

func TestPromptSetExtractUsesOverrideWhenConfigured(t *testing.T) {
	set := NewSet(true)
	set.Extraction[model.MemoryTypeProfile] = Spec{Literal: "custom extraction: {content}"}
	got := set.Extract(model.MemoryTypeProfile, map[string]string{"content": "x"})
	assert.Equal(t, "custom extraction: x", got)
}

func TestPromptSetExtractFallsBackToDefaultCatalogue(t *testing.T) {
	set := NewSet(true)
	got := set.Extract(model.MemoryTypeSkill, map[string]string{"content": "x"})
	assert.True(t, strings.Contains(got, "<skills>"))
}
