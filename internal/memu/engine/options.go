package engine

import (
	"context"

	"github.com/rs/zerolog"

	"memu/internal/memu/fetch"
	"memu/internal/memu/llmclient"
)

// Logger is the structured logging surface a Service calls through,
// narrowed to the handful of severities SPEC_FULL.md's ambient logging
// section asks for. A *zerolog.Logger satisfies it directly, mirroring
// internal/rag/service/options.go's Logger/defaultLogger split but backed
// by the pack's structured-logging library instead of a no-op stub.
type Logger interface {
	Info() *zerolog.Event
	Error() *zerolog.Event
	Debug() *zerolog.Event
}

// Option configures a Service during construction.
type Option func(*Service)

// WithLogger sets a custom logger. Defaults to a zerolog logger writing
// JSON to os.Stderr at the configured log level.
func WithLogger(l Logger) Option { return func(s *Service) { s.log = l } }

// WithFetcher overrides the ingest-side fetcher. Defaults to
// fetch.NewLocalFS().
func WithFetcher(f fetch.Fetcher) Option { return func(s *Service) { s.fetcher = f } }

// WithExtractFrame sets the optional video frame extractor memorize.IO
// accepts; a nil extractor degrades video preprocessing to a pass-through.
func WithExtractFrame(fn func(ctx context.Context, videoPath string) (string, error)) Option {
	return func(s *Service) { s.extractFrame = fn }
}

// WithLLMClient overrides the LLM client New would otherwise build from
// cfg.LLMProfiles — primarily for tests, which substitute llmclient.Fake.
func WithLLMClient(c llmclient.Client) Option { return func(s *Service) { s.llm = c } }
