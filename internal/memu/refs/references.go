// Package refs handles inline [ref:ID] citations embedded in category
// summaries, linking narrative statements back to the memory items that
// support them.
package refs

import (
	"fmt"
	"regexp"
	"strings"
)

// pattern matches [ref:ID] and the comma-separated form [ref:ID1,ID2].
var pattern = regexp.MustCompile(`\[ref:([a-zA-Z0-9_,\-]+)\]`)

const summaryTruncateLen = 100

// Extract returns the unique item ids cited in text, in order of first
// appearance.
func Extract(text string) []string {
	if text == "" {
		return nil
	}
	var ids []string
	seen := make(map[string]struct{})
	for _, match := range pattern.FindAllStringSubmatch(text, -1) {
		for _, id := range strings.Split(match[1], ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// Strip removes every [ref:...] citation from text, closing up the space
// left before trailing punctuation and collapsing whitespace.
func Strip(text string) string {
	if text == "" {
		return text
	}
	result := pattern.ReplaceAllString(text, "")
	result = spaceBeforePunct.ReplaceAllString(result, "$1")
	return strings.Join(strings.Fields(result), " ")
}

var spaceBeforePunct = regexp.MustCompile(`\s+([.,;:!?])`)

// Renumber rewrites [ref:ID] citations into sequential [1], [2] markers and
// appends a "References:" list mapping numbers back to ids. Text with no
// citations is returned unchanged.
func Renumber(text string) string {
	if text == "" {
		return text
	}
	ids := Extract(text)
	if len(ids) == 0 {
		return text
	}

	numByID := make(map[string]int, len(ids))
	for i, id := range ids {
		numByID[id] = i + 1
	}

	result := pattern.ReplaceAllStringFunc(text, func(match string) string {
		sub := pattern.FindStringSubmatch(match)
		var nums []string
		for _, id := range strings.Split(sub[1], ",") {
			id = strings.TrimSpace(id)
			if n, ok := numByID[id]; ok {
				nums = append(nums, fmt.Sprintf("%d", n))
			}
		}
		if len(nums) == 0 {
			return ""
		}
		return "[" + strings.Join(nums, ",") + "]"
	})

	var list strings.Builder
	list.WriteString("\n\nReferences:")
	for _, id := range ids {
		fmt.Fprintf(&list, "\n[%d] %s", numByID[id], id)
	}
	return result + list.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// CitableItem is the (id, summary) pair BuildReferenceMap renders.
type CitableItem struct {
	ID      string
	Summary string
}

// BuildReferenceMap renders the block of available memory items a
// summarization prompt may cite by id, truncating long summaries.
func BuildReferenceMap(items []CitableItem) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Available memory items for reference:")
	for _, it := range items {
		fmt.Fprintf(&b, "\n- [ref:%s] %s", it.ID, truncate(it.Summary, summaryTruncateLen))
	}
	return b.String()
}
