// Package retrieve implements the 7-step hierarchical retrieve pipeline
// (spec.md §4.6): route intention, recall categories, items and resources
// each gated by an LLM sufficiency check, and assemble a context. Ranking
// is pluggable between cosine vector search (RAG) and an LLM ranker (LLM),
// sharing the same step skeleton — generalizing
// original_source/src/memu/app/retrieve.py's two near-identical retrievers
// into one workflow.Pipeline[State] parameterized by model.RetrieveMethod.
package retrieve

import (
	"memu/internal/memu/model"
	"memu/internal/memu/prompts"
)

// Message is one message-shaped query in the caller-supplied history; the
// last entry is the current user turn, earlier ones are context.
type Message struct {
	Role    string
	Content string
}

// Request is the caller-supplied input to a retrieve run.
type Request struct {
	Messages []Message
	Scope    model.Scope
}

// CategoryHit, ItemHit and ResourceHit are the ranked entities a retrieve
// run surfaces, with embeddings stripped and a score attached only for RAG
// hits (spec.md §4.6 step 7).
type CategoryHit struct {
	ID      string
	Name    string
	Summary string
	Score   *float64
}

type ItemHit struct {
	ID         string
	ResourceID string
	MemoryType model.MemoryType
	Summary    string
	Score      *float64
}

type ResourceHit struct {
	ID      string
	URL     string
	Caption string
	Score   *float64
}

// Response is what a retrieve run hands back to the caller.
type Response struct {
	NeedsRetrieval bool
	OriginalQuery  string
	RewrittenQuery string
	NextQuery      string
	Categories     []CategoryHit
	Items          []ItemHit
	Resources      []ResourceHit
}

// State threads through every retrieve step. A concrete struct, not an
// untyped dict, mirroring memorize.State.
type State struct {
	Request Request
	Method  model.RetrieveMethod
	Prompts *prompts.Set

	EnableIntentionRouting     bool
	EnableCategoryRecall       bool
	EnableSufficiencyChecks    bool
	EnableResourceRecall       bool
	EnableCategoryRefFollowing bool

	CategoryTopK int
	ItemTopK     int
	ResourceTopK int

	ItemRanking         model.RankingStrategy
	RecencyHalfLifeDays float64

	originalQuery      string
	activeQuery        string
	needsRetrieval     bool
	proceedToItems     bool
	proceedToResources bool
	nextQuery          string

	categoryHits []CategoryHit
	itemHits     []ItemHit
	resourceHits []ResourceHit

	Response Response
}
