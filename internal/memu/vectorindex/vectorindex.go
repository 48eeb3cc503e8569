// Package vectorindex ranks embedded records by cosine similarity and, for
// memory items, by a salience score blending similarity with reinforcement
// and recency. It backs the in-memory store and the RAG step of the
// retrieve pipeline when no native vector database is configured.
package vectorindex

import (
	"math"
	"sort"
	"time"
)

// DefaultRecencyDecayDays is the half-life used when a caller does not
// configure one.
const DefaultRecencyDecayDays = 30.0

const cosineEpsilon = 1e-9

// Candidate is a ranked result: an id paired with the score it was ranked
// by (raw cosine similarity, or salience).
type Candidate struct {
	ID    string
	Score float64
}

// Cosine computes the cosine similarity between two equal-length vectors.
func Cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA)*math.Sqrt(normB) + cosineEpsilon
	return dot / denom
}

// SalienceScore combines cosine similarity with a logarithmic
// reinforcement factor and an exponential recency half-life decay. A nil
// lastReinforcedAt (never reinforced) yields a neutral recency factor of
// exactly 0.5.
func SalienceScore(similarity float64, reinforcementCount int, lastReinforcedAt *time.Time, recencyDecayDays float64, now time.Time) float64 {
	reinforcementFactor := math.Log(float64(reinforcementCount) + 1)

	var recencyFactor float64
	if lastReinforcedAt == nil {
		recencyFactor = 0.5
	} else {
		daysAgo := now.Sub(*lastReinforcedAt).Hours() / 24
		recencyFactor = math.Exp(-math.Ln2 * daysAgo / recencyDecayDays)
	}

	return similarity * reinforcementFactor * recencyFactor
}

// Embedded is a minimal (id, vector) pair for plain cosine ranking.
type Embedded struct {
	ID        string
	Embedding []float32
}

// CosineTopK ranks corpus by cosine similarity to query and returns the top
// k, descending. Entries with a nil or mismatched-length embedding are
// skipped.
func CosineTopK(query []float32, corpus []Embedded, k int) []Candidate {
	var scored []Candidate
	for _, e := range corpus {
		if len(e.Embedding) == 0 || len(e.Embedding) != len(query) {
			continue
		}
		scored = append(scored, Candidate{ID: e.ID, Score: Cosine(query, e.Embedding)})
	}
	return topK(scored, k)
}

// SalienceEntry is a memory-item-shaped ranking input: embedding plus the
// reinforcement bookkeeping salience scoring needs.
type SalienceEntry struct {
	ID                 string
	Embedding          []float32
	ReinforcementCount int
	LastReinforcedAt   *time.Time
}

// SalienceTopK ranks corpus by salience score and returns the top k,
// descending.
func SalienceTopK(query []float32, corpus []SalienceEntry, k int, recencyDecayDays float64, now time.Time) []Candidate {
	var scored []Candidate
	for _, e := range corpus {
		if len(e.Embedding) == 0 || len(e.Embedding) != len(query) {
			continue
		}
		sim := Cosine(query, e.Embedding)
		score := SalienceScore(sim, e.ReinforcementCount, e.LastReinforcedAt, recencyDecayDays, now)
		scored = append(scored, Candidate{ID: e.ID, Score: score})
	}
	return topK(scored, k)
}

func topK(scored []Candidate, k int) []Candidate {
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k >= 0 && k < len(scored) {
		scored = scored[:k]
	}
	return scored
}
