package memorize

import (
	"encoding/xml"
	"regexp"
	"strings"
)

// extractionMemory is one <memory> child of an extraction response, parsed
// regardless of the enclosing root tag (profile|behaviors|events|knowledge|
// skills|item): xml.Name is left unconstrained so the same struct matches
// any of them.
type extractionMemory struct {
	Content    string   `xml:"content"`
	Categories []string `xml:"categories>category"`
}

type extractionRoot struct {
	XMLName  xml.Name
	Memories []extractionMemory `xml:"memory"`
}

// strayAmpersand matches a bare "&" not already part of a recognized XML
// entity, so it can be escaped before parsing (spec.md §4.5's "strip stray
// ampersands" fallback).
var strayAmpersand = regexp.MustCompile(`&(?:amp|lt|gt|apos|quot|#\d+|#x[0-9a-fA-F]+);|&`)

func escapeStrayAmpersands(s string) string {
	return strayAmpersand.ReplaceAllStringFunc(s, func(match string) string {
		if match == "&" {
			return "&amp;"
		}
		return match
	})
}

// extractXMLBody narrows raw LLM output down to its outermost XML element,
// tolerating prose or markdown fences before/after it.
func extractXMLBody(raw string) string {
	start := strings.IndexByte(raw, '<')
	end := strings.LastIndexByte(raw, '>')
	if start < 0 || end < 0 || end < start {
		return raw
	}
	return raw[start : end+1]
}

// parseExtraction parses an extraction response into its memory children.
// A malformed response is a parse failure: callers drop this unit and
// continue rather than treating it as fatal (spec.md §7).
func parseExtraction(raw string) ([]extractionMemory, error) {
	cleaned := escapeStrayAmpersands(extractXMLBody(raw))
	var root extractionRoot
	if err := xml.Unmarshal([]byte(cleaned), &root); err != nil {
		return nil, err
	}
	return root.Memories, nil
}
