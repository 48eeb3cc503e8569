package vectorindex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCosineIdenticalVectors(t *testing.T) {
	v := []float32{1, 2, 3}
	got := Cosine(v, v)
	assert.InDelta(t, 1.0, got, 1e-6)
}

func TestCosineOrthogonal(t *testing.T) {
	got := Cosine([]float32{1, 0}, []float32{0, 1})
	assert.InDelta(t, 0.0, got, 1e-6)
}

func TestSalienceScoreUnknownRecencyIsNeutral(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := SalienceScore(1.0, 1, nil, DefaultRecencyDecayDays, now)
	// similarity=1 and reinforcement_count=1 give ln(2), so the score
	// isolates the recency factor: ln(2)*0.5 for a never-reinforced item.
	assert.InDelta(t, 0.693147*0.5, got, 1e-6)
}

func TestSalienceScoreHalfLifeAtDecayHorizon(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	last := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// similarity=1, reinforcement_count=1 -> ln(2), exactly 30 days elapsed
	// -> recency factor 0.5, net score ln(2)*0.5.
	got := SalienceScore(1.0, 1, &last, 30.0, now)
	assert.InDelta(t, 0.693147*0.5, got, 1e-4)
}

func TestSalienceScoreNeverReinforcedRecencyFactor(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	withNil := SalienceScore(1.0, 5, nil, DefaultRecencyDecayDays, now)
	last := now
	withNow := SalienceScore(1.0, 5, &last, DefaultRecencyDecayDays, now)
	// reinforced "now" (zero days ago) has recency factor 1.0, so it must
	// score strictly higher than the neutral 0.5 applied to a never
	// reinforced item.
	assert.Greater(t, withNow, withNil)
}

func TestCosineTopKOrdersDescendingAndTruncates(t *testing.T) {
	corpus := []Embedded{
		{ID: "a", Embedding: []float32{1, 0}},
		{ID: "b", Embedding: []float32{0, 1}},
		{ID: "c", Embedding: []float32{0.9, 0.1}},
	}
	got := CosineTopK([]float32{1, 0}, corpus, 2)
	assert.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}

func TestCosineTopKSkipsMismatchedDimensions(t *testing.T) {
	corpus := []Embedded{
		{ID: "a", Embedding: []float32{1, 0, 0}},
		{ID: "b", Embedding: nil},
	}
	got := CosineTopK([]float32{1, 0}, corpus, 5)
	assert.Len(t, got, 0)
}

func TestSalienceTopKOrdersDescending(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := now.Add(-time.Hour)
	old := now.AddDate(0, 0, -90)
	corpus := []SalienceEntry{
		{ID: "stale", Embedding: []float32{1, 0}, ReinforcementCount: 1, LastReinforcedAt: &old},
		{ID: "fresh", Embedding: []float32{1, 0}, ReinforcementCount: 1, LastReinforcedAt: &recent},
	}
	got := SalienceTopK([]float32{1, 0}, corpus, 2, DefaultRecencyDecayDays, now)
	assert.Equal(t, "fresh", got[0].ID)
}
