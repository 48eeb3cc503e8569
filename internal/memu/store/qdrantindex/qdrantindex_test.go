package qdrantindex

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPointIDPassesThroughRealUUIDs(t *testing.T) {
	id := uuid.NewString()
	mapped, remapped := pointID(id)
	assert.Equal(t, id, mapped)
	assert.False(t, remapped)
}

func TestPointIDRemapsNonUUIDDeterministically(t *testing.T) {
	first, remapped := pointID("item-123")
	assert.True(t, remapped)
	second, _ := pointID("item-123")
	assert.Equal(t, first, second, "remapping must be deterministic for payload lookup round-trips")

	_, err := uuid.Parse(first)
	assert.NoError(t, err, "remapped id must itself be a valid UUID")
}

func TestPointIDDistinctInputsDistinctOutputs(t *testing.T) {
	a, _ := pointID("item-a")
	b, _ := pointID("item-b")
	assert.NotEqual(t, a, b)
}
