// Package util holds small, dependency-free helpers shared across the
// memorize/retrieve pipelines that don't belong to any one package.
package util

import "unicode"

// CountTokens estimates how many LLM tokens s would cost, by counting
// whitespace- and punctuation-delimited words. It is rough by design: good
// enough to decide whether a document needs splitting into more than one
// extraction segment, not an exact tokenizer match for any one model.
func CountTokens(s string) int {
	inWord := false
	count := 0
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			if inWord {
				count++
				inWord = false
			}
		case unicode.IsPunct(r):
			if inWord {
				count++
				inWord = false
			}
			count++
		default:
			inWord = true
		}
	}
	if inWord {
		count++
	}
	return count
}
