package llmclient

import (
	"context"
	"fmt"
)

// Fake is an in-process Client for tests: deterministic embeddings derived
// from input text, and canned text responses. Profile names are accepted
// but ignored, since tests do not distinguish backends.
type Fake struct {
	EmbeddingDim int
	SummarizeFn  func(prompt, systemPrompt string) (string, error)
	VisionFn     func(prompt, imagePath, systemPrompt string) (string, error)
	TranscribeFn func(audioPath string) (string, error)
}

// NewFake returns a Fake producing dim-dimensional embeddings.
func NewFake(dim int) *Fake { return &Fake{EmbeddingDim: dim} }

func (f *Fake) Embed(_ context.Context, _ string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, in := range texts {
		out[i] = deterministicVector(in, f.EmbeddingDim)
	}
	return out, nil
}

func (f *Fake) Summarize(_ context.Context, _ string, prompt, systemPrompt string) (string, error) {
	if f.SummarizeFn != nil {
		return f.SummarizeFn(prompt, systemPrompt)
	}
	return prompt, nil
}

func (f *Fake) Vision(_ context.Context, _ string, prompt, imagePath, systemPrompt string) (string, error) {
	if f.VisionFn != nil {
		return f.VisionFn(prompt, imagePath, systemPrompt)
	}
	return fmt.Sprintf("caption of %s", imagePath), nil
}

func (f *Fake) Transcribe(_ context.Context, _ string, audioPath string) (string, error) {
	if f.TranscribeFn != nil {
		return f.TranscribeFn(audioPath)
	}
	return fmt.Sprintf("transcript of %s", audioPath), nil
}

// deterministicVector hashes text into a fixed-length vector so repeated
// calls with the same input always embed identically, without pulling in
// a real model.
func deterministicVector(text string, dim int) []float32 {
	if dim <= 0 {
		dim = 8
	}
	v := make([]float32, dim)
	h := uint32(2166136261)
	for i := 0; i < len(text); i++ {
		h ^= uint32(text[i])
		h *= 16777619
		v[i%dim] += float32(h%1000) / 1000.0
	}
	return v
}
