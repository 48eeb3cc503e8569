package retrieve

import (
	"context"
	"regexp"
	"strings"

	"memu/internal/memu/llmclient"
)

const sufficiencySystemPrompt = "You are a sufficiency judge deciding whether to keep retrieving or respond now."

var (
	decisionPattern  = regexp.MustCompile(`(?is)<decision>\s*(retrieve|no_retrieve)\s*</decision>`)
	rewrittenPattern = regexp.MustCompile(`(?is)<rewritten_query>(.*?)</rewritten_query>`)
)

// parseSufficiency reads a sufficiency-check response. ok is false when no
// <decision> token was found at all; callers default to "keep retrieving,
// reuse the active query" on that case (spec.md §4.6's parse-failure rule).
func parseSufficiency(raw string) (retrieveMore bool, rewritten string, ok bool) {
	m := decisionPattern.FindStringSubmatch(raw)
	if m == nil {
		return true, "", false
	}
	retrieveMore = strings.EqualFold(m[1], "retrieve")
	if rm := rewrittenPattern.FindStringSubmatch(raw); rm != nil {
		rewritten = strings.TrimSpace(rm[1])
	}
	return retrieveMore, rewritten, true
}

// runSufficiency runs one sufficiency check against contextInfo and folds
// its verdict into s.activeQuery/s.nextQuery. Both an upstream (LLM) failure
// and a parse failure degrade to "keep retrieving, reuse the active query"
// rather than aborting the run (spec.md §7).
func runSufficiency(ctx context.Context, s *State, llm llmclient.Client, contextInfo string) bool {
	if !s.EnableSufficiencyChecks {
		return true
	}
	prompt := s.Prompts.RouteIntentionPrompt(map[string]string{
		"query":        s.activeQuery,
		"context_info": contextInfo,
	})
	raw, err := llm.Summarize(ctx, "sufficiency", prompt, sufficiencySystemPrompt)
	if err != nil {
		return true
	}
	retrieveMore, rewritten, ok := parseSufficiency(raw)
	if !ok {
		return true
	}
	if rewritten != "" {
		s.activeQuery = rewritten
		s.nextQuery = rewritten
	}
	return retrieveMore
}
