package memorize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkByTokenBudgetUnboundedReturnsOneSegment(t *testing.T) {
	text := "line one\nline two\nline three"
	segs := chunkByTokenBudget(text, 0)
	assert.Len(t, segs, 1)
	assert.Equal(t, text, segs[0].Text)
	assert.Equal(t, 0, segs[0].StartLine)
	assert.Equal(t, lineCount(text), segs[0].EndLine)
}

func TestChunkByTokenBudgetSplitsOnBudget(t *testing.T) {
	lines := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		lines = append(lines, "word word word word")
	}
	text := strings.Join(lines, "\n")

	segs := chunkByTokenBudget(text, 20)
	if assert.Greater(t, len(segs), 1) {
		var rebuilt []string
		for _, seg := range segs {
			rebuilt = append(rebuilt, seg.Text)
		}
		assert.Equal(t, text, strings.Join(rebuilt, "\n"))
	}
}

func TestChunkByTokenBudgetEmptyInput(t *testing.T) {
	segs := chunkByTokenBudget("", 100)
	assert.Len(t, segs, 1)
	assert.Equal(t, "", segs[0].Text)
}
