// Package prompts implements the block-map prompt composition contract of
// spec.md §4.7: a prompt is either a plain string used verbatim, or an
// ordered set of named blocks, each either overridden by the caller or
// falling back to a built-in default, concatenated by ascending ordinal
// with blank lines between non-empty blocks. Grounded on the original
// source's prompts/category_summary/category_with_refs.py, which encodes
// exactly this block-map/merge/join shape in Python module constants.
package prompts

import (
	"regexp"
	"sort"
	"strings"
)

// Block is one named, ordered piece of a composed prompt. An empty Prompt
// signals "fall back to the built-in default for this name" when merged
// against a catalogue.
type Block struct {
	Ordinal int
	Prompt  string
}

// BlockMap is a named, partially user-overridable prompt template.
type BlockMap map[string]Block

// Spec selects between the two prompt forms spec.md §4.7 allows: a plain
// string used verbatim, or a block map merged against a built-in
// catalogue. Exactly one of Literal or Blocks should be set; Literal wins
// if both are.
type Spec struct {
	Literal string
	Blocks  BlockMap
}

// Compose renders spec against vars, substituting {name} placeholders and
// escaping any curly braces found inside the substituted values themselves
// so they can never be mistaken for a nested placeholder if the composed
// text is templated again downstream.
func Compose(spec Spec, defaults BlockMap, vars map[string]string) string {
	if spec.Literal != "" {
		return substitute(spec.Literal, vars)
	}
	merged := mergeBlocks(defaults, spec.Blocks)
	return substitute(joinOrdered(merged), vars)
}

func mergeBlocks(defaults, overrides BlockMap) BlockMap {
	out := make(BlockMap, len(defaults))
	for name, b := range defaults {
		out[name] = b
	}
	for name, override := range overrides {
		merged := out[name]
		if override.Prompt != "" {
			merged.Prompt = override.Prompt
		}
		if override.Ordinal != 0 {
			merged.Ordinal = override.Ordinal
		}
		out[name] = merged
	}
	return out
}

func joinOrdered(blocks BlockMap) string {
	names := make([]string, 0, len(blocks))
	for name := range blocks {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if blocks[names[i]].Ordinal != blocks[names[j]].Ordinal {
			return blocks[names[i]].Ordinal < blocks[names[j]].Ordinal
		}
		return names[i] < names[j]
	})

	var parts []string
	for _, name := range names {
		text := strings.TrimSpace(blocks[name].Prompt)
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

func substitute(tmpl string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := match[1 : len(match)-1]
		val, ok := vars[name]
		if !ok {
			return match
		}
		return escapeBraces(val)
	})
}

var braceEscaper = strings.NewReplacer("{", "\\{", "}", "\\}")

func escapeBraces(s string) string {
	return braceEscaper.Replace(s)
}
