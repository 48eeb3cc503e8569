// Package memorize implements the 7-step memorize pipeline (spec.md §4.5):
// ingest a resource, preprocess it per modality, extract atomic memories,
// dedupe/merge, categorize and persist, regenerate touched category
// summaries, and build the response. Steps are wired as a
// workflow.Pipeline[State], generalizing
// original_source/src/memu/app/memorize.py's WorkflowStep chain into Go's
// typed step-DAG engine.
package memorize

import (
	"memu/internal/memu/model"
	"memu/internal/memu/prompts"
)

// Segment is one topically coherent span of a preprocessed resource.
// For a conversation, Text is sliced from the caller-supplied, fetched
// content by line range — never copied from an LLM's rewrite of it — so
// extracted items stay traceable to an exact source range (spec.md §4.3's
// authoritative-text invariant). For documents, transcribed audio, images
// and video, Text is the LLM's processed content or description; a
// pass-through segment carries the raw text.
type Segment struct {
	Text      string
	Caption   string
	StartLine int
	EndLine   int
}

// ExtractedMemory is one atomic memory an extraction call yielded, not yet
// deduped or persisted.
type ExtractedMemory struct {
	MemoryType   model.MemoryType
	Content      string
	Categories   []string
	SegmentIndex int
	SegmentStart int
	SegmentEnd   int
}

// CategoryOverride is one category's optional custom summary prompt and
// target length, overriding the shared defaults for that category only.
type CategoryOverride struct {
	Prompt       prompts.Spec
	TargetLength int
}

// Request is the caller-supplied input to a memorize run.
type Request struct {
	URL      string
	Modality model.Modality
	Scope    model.Scope
}

// Response is what a memorize run hands back to the caller. Exactly one of
// Resource or Resources is set: a single-segment run returns Resource,
// a multi-segment run returns the plural Resources (spec.md §4.5 step 7).
type Response struct {
	Resource  *model.Resource
	Resources []*model.Resource
	Items     []*model.MemoryItem
}

// State threads through every memorize step. It is a concrete struct, not
// an untyped dict, per spec.md's design note on typed pipeline state.
type State struct {
	Request Request

	// MemoryTypes is the configured whitelist for this run (defaults to
	// model.AllMemoryTypes()).
	MemoryTypes []model.MemoryType
	// CategoryAssignmentThreshold is the minimum cosine similarity for a
	// fallback vector-based category match when an extracted memory names
	// no category the store recognizes by name.
	CategoryAssignmentThreshold float64
	// SummaryTargetLength is substituted into the category-summary prompt
	// as {target_length}.
	SummaryTargetLength int
	// EnableItemReferences toggles [ref:ID] citation writing.
	EnableItemReferences bool
	// MaxSegmentTokens caps how large a single document/text segment may
	// grow before preprocess splits it into more than one, so extraction
	// prompts stay within a model's usable context. Zero means unbounded
	// (one segment for the whole resource).
	MaxSegmentTokens int
	Prompts          *prompts.Set

	// CategoryOverrides holds each configured category's optional custom
	// summary prompt/target length, keyed by category name (spec.md §6.4).
	// A category absent from this map regenerates its summary from
	// Prompts' shared default.
	CategoryOverrides map[string]CategoryOverride

	// Resources holds one Resource per entry in Segments, created and
	// captioned during categorize+persist (spec.md §4.5 step 5: "for each
	// segment: create one Resource").
	Resources []*model.Resource
	LocalPath string
	RawText   string
	Segments  []Segment

	Extracted []ExtractedMemory
	Items     []*model.MemoryItem

	// TouchedCategories maps category id -> true for every category that
	// received at least one newly-linked item this run; only these get
	// their summary regenerated (persist_index's idempotence-on-zero-new-
	// items rule).
	TouchedCategories map[string]bool
	// NewItemsByCategory maps category id -> the items newly linked to it
	// this run, in link order. persist_index feeds only these into the
	// summary-regeneration prompt's new_memory_items_text (spec.md §4.5
	// step 6: "the new (short_id, summary) tuples"), not every item the
	// category has ever accumulated.
	NewItemsByCategory map[string][]*model.MemoryItem

	Response Response
}
