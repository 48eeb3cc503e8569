package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeContentHashNormalizes(t *testing.T) {
	a := ComputeContentHash(MemoryTypeProfile, "Likes   Coffee")
	b := ComputeContentHash(MemoryTypeProfile, "likes coffee")
	assert.Equal(t, a, b, "casing and whitespace must not affect the dedup key")
	assert.Len(t, a, 16)
}

func TestComputeContentHashDistinguishesMemoryType(t *testing.T) {
	a := ComputeContentHash(MemoryTypeProfile, "likes coffee")
	b := ComputeContentHash(MemoryTypeEvent, "likes coffee")
	assert.NotEqual(t, a, b)
}

func TestShortIDStripsDashesAndTruncates(t *testing.T) {
	got := ShortID("abcd1234-5678-90ab-cdef-000000000000")
	assert.Equal(t, "abcd12", got)
}

func TestShortIDShorterThanSix(t *testing.T) {
	assert.Equal(t, "abc", ShortID("ab-c"))
}

func TestMemoryItemReinforcementDefaults(t *testing.T) {
	m := &MemoryItem{}
	assert.Equal(t, 1, m.ReinforcementCount())

	_, ok := m.LastReinforcedAt()
	assert.False(t, ok)
}

func TestMemoryItemLastReinforcedAtParses(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m := &MemoryItem{Extra: map[string]any{
		extraLastReinforcedAt: now.Format(time.RFC3339),
	}}
	got, ok := m.LastReinforcedAt()
	require.True(t, ok)
	assert.True(t, now.Equal(got))
}

func TestMemoryItemSetRefIDInitializesExtra(t *testing.T) {
	m := &MemoryItem{}
	m.SetRefID("abcd12")
	assert.Equal(t, "abcd12", m.RefID())
}

func TestCategoryEmbeddingText(t *testing.T) {
	c := &MemoryCategory{Name: "travel", Description: "trips and destinations"}
	assert.Equal(t, "travel: trips and destinations", c.EmbeddingText())
}
