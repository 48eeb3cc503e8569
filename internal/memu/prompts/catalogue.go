package prompts

import "memu/internal/memu/model"

// ExtractionBlocks returns the default extraction prompt for memoryType:
// objective/workflow/rules/output/examples/input, parameterized by the
// type's XML root tag (spec.md §4.5 step 3). Vars: {content}.
func ExtractionBlocks(memoryType model.MemoryType) BlockMap {
	tag := memoryType.RootTag()
	return BlockMap{
		"objective": {Ordinal: 1, Prompt: `
# Task Objective
You are a memory extraction specialist. Read the segment below and pull out
every distinct, atomic ` + string(memoryType) + ` memory it contains. Each
memory must stand alone without the rest of the segment for context.
`},
		"workflow": {Ordinal: 2, Prompt: `
# Workflow
1. Read the segment once in full before extracting anything.
2. For each candidate memory, write one self-contained sentence.
3. Assign zero or more category names each memory plausibly belongs to.
4. Discard anything that is not a durable fact, event, preference, or skill.
`},
		"rules": {Ordinal: 3, Prompt: `
# Rules
- One memory per <memory> element; do not merge unrelated facts.
- Never invent information absent from the segment.
- Omit a memory entirely rather than guess at a missing detail.
`},
		"output": {Ordinal: 4, Prompt: `
# Output Format
Respond with XML only, rooted at <` + tag + `>:
<` + tag + `>
  <memory>
    <content>...</content>
    <categories><category>...</category></categories>
  </memory>
</` + tag + `>
`},
		"examples": {Ordinal: 5, Prompt: ""},
		"input": {Ordinal: 6, Prompt: `
# Input
<segment>
{content}
</segment>
`},
	}
}

// PreprocessBlocks returns the default per-modality preprocessing prompt.
// Conversation preprocessing additionally expects a JSON segmentation
// payload per spec.md §4.3; the authoritative segment text is always
// re-sliced from the original transcript, never taken from this response.
func PreprocessBlocks(modality model.Modality) BlockMap {
	switch modality {
	case model.ModalityConversation:
		return BlockMap{
			"objective": {Ordinal: 1, Prompt: `
# Task Objective
Segment the conversation below into topically coherent spans and caption
each span in one or two sentences.
`},
			"output": {Ordinal: 2, Prompt: `
# Output Format
Respond with a <conversation> block containing your read of the transcript,
followed by JSON: {"segments": [{"start": <line>, "end": <line>, "caption": "..."}]}.
`},
			"input": {Ordinal: 3, Prompt: `
# Input
<resource>
{resource}
</resource>
`},
		}
	case model.ModalityDocument, model.ModalityText:
		return BlockMap{
			"objective": {Ordinal: 1, Prompt: `
# Task Objective
Read the document below and produce a faithful plain-text rendering
suitable for downstream memory extraction.
`},
			"output": {Ordinal: 2, Prompt: `
# Output Format
Respond with <processed_content>...</processed_content> holding the
rendered text, followed by <caption>...</caption> holding a one-sentence
summary of the document.
`},
			"input": {Ordinal: 3, Prompt: `
# Input
<resource>
{resource}
</resource>
`},
		}
	case model.ModalityImage:
		return BlockMap{
			"objective": {Ordinal: 1, Prompt: `
# Task Objective
Describe the image below in enough factual detail for a memory extractor
to find durable facts about the user or subject within it.
`},
			"output": {Ordinal: 2, Prompt: `
# Output Format
Respond with <detailed_description>...</detailed_description> followed by
<caption>...</caption> holding a one-sentence summary of the image.
`},
		}
	case model.ModalityAudio:
		return BlockMap{
			"objective": {Ordinal: 1, Prompt: `
# Task Objective
Transcribe the audio below, preserving speaker turns where distinguishable.
`},
		}
	case model.ModalityVideo:
		return BlockMap{
			"objective": {Ordinal: 1, Prompt: `
# Task Objective
Describe the extracted video frame below, noting anything durable about
the user or subject.
`},
			"output": {Ordinal: 2, Prompt: `
# Output Format
Respond with <detailed_description>...</detailed_description> followed by
<caption>...</caption> holding a one-sentence summary of the frame.
`},
		}
	default:
		return BlockMap{}
	}
}

// CategorySummaryBlocks returns the default category-summary regeneration
// prompt. withRefs selects the [ref:ITEM_ID]-citation variant, grounded
// directly on prompts/category_summary/category_with_refs.py.
// Vars: {category}, {original_content}, {new_memory_items_text}, {target_length}.
func CategorySummaryBlocks(withRefs bool) BlockMap {
	objective := `
# Task Objective
You are a profile synchronization specialist. Merge newly extracted memory
items into the category's existing summary using only two operations: add
and update.
`
	rules := `
# Rules
1. Present content by category order; omit empty sections.
2. Use Markdown headings (# for the category title, ## for subsections).
3. Prefer updating an existing statement over duplicating it.
`
	output := `
# Output Format
Respond with only the updated Markdown summary, no more than {target_length}
tokens, no explanations or meta text.
`
	if withRefs {
		objective += `
IMPORTANT: every statement drawn from a new memory item must carry an
inline [ref:ITEM_ID] citation (comma-separated for multiple sources), so the
summary stays traceable to the memories that produced it.
`
		rules += `4. Every new or updated fact needs at least one [ref:ITEM_ID] citation; existing untouched facts do not.
5. Place the citation immediately after the statement it supports.
`
		output += `Always include [ref:ITEM_ID] for facts sourced from new memory items.
`
	}
	return BlockMap{
		"objective": {Ordinal: 1, Prompt: objective},
		"context": {Ordinal: 2, Prompt: `
# Context
Topic: {category}

Existing summary:
<content>
{original_content}
</content>

New memory items:
<items>
{new_memory_items_text}
</items>
`},
		"rules":  {Ordinal: 3, Prompt: rules},
		"output": {Ordinal: 4, Prompt: output},
	}
}

// RouteIntentionBlocks is the sufficiency-check prompt used at retrieve
// step 1 (and again after categories/items/resources are recalled). It asks
// for a <decision>RETRIEVE|NO_RETRIEVE</decision> verdict and, on RETRIEVE, an
// optional <rewritten_query>. Vars: {query}, {context_info}.
func RouteIntentionBlocks() BlockMap {
	return BlockMap{
		"objective": {Ordinal: 1, Prompt: `
# Task Objective
Decide whether the context gathered so far is sufficient to answer the
query, or whether more memory should be retrieved.
`},
		"output": {Ordinal: 2, Prompt: `
# Output Format
<decision>RETRIEVE|NO_RETRIEVE</decision>
<rewritten_query>optional, only when RETRIEVE and the query should narrow</rewritten_query>
`},
		"input": {Ordinal: 3, Prompt: `
# Input
Query: {query}

Context so far:
{context_info}
`},
	}
}

// RouteCategoryBlocks selects candidate categories for a query via the LLM
// ranking variant. Vars: {query}, {top_k}, {categories_data}.
func RouteCategoryBlocks() BlockMap {
	return BlockMap{
		"objective": {Ordinal: 1, Prompt: `
# Task Objective
Pick the categories most likely to contain memories relevant to the query.
`},
		"output": {Ordinal: 2, Prompt: `
# Output Format
Respond with a JSON array of up to {top_k} category ids, most relevant first.
`},
		"input": {Ordinal: 3, Prompt: `
# Input
Query: {query}

Categories:
{categories_data}
`},
	}
}

// RecallItemsBlocks ranks memory items for a query via the LLM ranking
// variant. Vars: {query}, {top_k}, {items_data}.
func RecallItemsBlocks() BlockMap {
	return BlockMap{
		"objective": {Ordinal: 1, Prompt: `
# Task Objective
Pick the memory items most relevant to answering the query.
`},
		"output": {Ordinal: 2, Prompt: `
# Output Format
Respond with a JSON array of up to {top_k} item ids, most relevant first.
`},
		"input": {Ordinal: 3, Prompt: `
# Input
Query: {query}

Items:
{items_data}
`},
	}
}

// RecallResourcesBlocks ranks resources for a query via the LLM ranking
// variant. Vars: {query}, {top_k}, {resources_data}, {conversation_history},
// {retrieved_content}.
func RecallResourcesBlocks() BlockMap {
	return BlockMap{
		"objective": {Ordinal: 1, Prompt: `
# Task Objective
Pick the source resources most worth surfacing alongside the retrieved
memories and conversation history.
`},
		"output": {Ordinal: 2, Prompt: `
# Output Format
Respond with a JSON array of up to {top_k} resource ids, most relevant first.
`},
		"input": {Ordinal: 3, Prompt: `
# Input
Query: {query}

Conversation history:
{conversation_history}

Retrieved content so far:
{retrieved_content}

Resources:
{resources_data}
`},
	}
}
