package retrieve

import (
	"encoding/json"
	"fmt"
	"strings"

	"memu/internal/memu/model"
)

// parseIDList extracts a JSON array of ids from raw, tolerating surrounding
// prose the way extraction/preprocess parsing does. A malformed or missing
// array is a parse failure: callers drop the tier rather than abort.
func parseIDList(raw string) ([]string, error) {
	start := strings.IndexByte(raw, '[')
	end := strings.LastIndexByte(raw, ']')
	if start < 0 || end < 0 || end < start {
		return nil, errNoJSONArray
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw[start:end+1]), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func formatMessages(messages []Message) string {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}

func formatCategories(categories []*model.MemoryCategory) string {
	var b strings.Builder
	for _, c := range categories {
		fmt.Fprintf(&b, "- id=%s name=%q description=%q summary=%q\n", c.ID, c.Name, c.Description, c.Summary)
	}
	return b.String()
}

func formatItems(items []*model.MemoryItem) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "- id=%s type=%s summary=%q\n", it.ID, it.MemoryType, it.Summary)
	}
	return b.String()
}

func formatResources(resources []*model.Resource) string {
	var b strings.Builder
	for _, r := range resources {
		fmt.Fprintf(&b, "- id=%s url=%q caption=%q\n", r.ID, r.URL, r.Caption)
	}
	return b.String()
}

func formatCategoryHits(hits []CategoryHit) string {
	if len(hits) == 0 {
		return "No content retrieved yet."
	}
	var b strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", h.ID, h.Name, h.Summary)
	}
	return b.String()
}

func formatItemHits(hits []ItemHit) string {
	if len(hits) == 0 {
		return "No content retrieved yet."
	}
	var b strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&b, "- [%s] %s\n", h.ID, h.Summary)
	}
	return b.String()
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
