// Package engine wires the memorize and retrieve pipelines, a selected
// storage backend, an LLM client, and the prompt catalogue into the one
// entry point callers use: Service. It mirrors internal/rag/service's
// functional-options construction (New(deps, opts...) building a struct
// whose methods run the pipelines), generalized from one RAG service to
// this engine's two pipelines plus its one-time category-initialization
// requirement (spec.md §5).
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"memu/internal/memu/config"
	"memu/internal/memu/fetch"
	"memu/internal/memu/llmclient"
	"memu/internal/memu/memorize"
	"memu/internal/memu/model"
	"memu/internal/memu/retrieve"
	"memu/internal/memu/store"
	"memu/internal/memu/store/memstore"
	"memu/internal/memu/store/pgstore"
	"memu/internal/memu/store/qdrantindex"
	"memu/internal/memu/workflow"
)

// openPgPool opens a pgxpool against dsn, following the teacher's direct
// pgxpool.New construction (cmd/migrateprojects/main.go).
func openPgPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("engine: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("engine: ping postgres: %w", err)
	}
	return pool, nil
}

// Service is the engine a caller builds once per deployment and calls
// Memorize/Retrieve on for the lifetime of the process.
type Service struct {
	cfg   *config.Config
	repos *store.Store
	llm   llmclient.Client

	log          Logger
	fetcher      fetch.Fetcher
	extractFrame func(ctx context.Context, videoPath string) (string, error)

	memorizePipeline *workflow.Pipeline[memorize.State]
	retrievePipeline *workflow.Pipeline[retrieve.State]

	categoriesOnce sync.Once
	categoriesErr  error
}

// New builds a Service from cfg: selects and opens the storage backend,
// builds the memorize/retrieve pipelines, and wires an LLM client from
// cfg.LLMProfiles. Categories are NOT embedded yet; that happens lazily on
// the first Memorize or Retrieve call (spec.md §5).
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	repos, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("engine: open backend: %w", err)
	}

	memorizePipeline, err := memorize.New()
	if err != nil {
		return nil, fmt.Errorf("engine: build memorize pipeline: %w", err)
	}
	retrievePipeline, err := retrieve.New()
	if err != nil {
		return nil, fmt.Errorf("engine: build retrieve pipeline: %w", err)
	}

	s := &Service{
		cfg:              cfg,
		repos:            repos,
		llm:              llmclient.NewHTTPClient(cfg.LLMProfiles),
		log:              newLogger(cfg.LogLevel),
		fetcher:          fetch.NewLocalFS(),
		memorizePipeline: memorizePipeline,
		retrievePipeline: retrievePipeline,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// openBackend selects and opens the storage backend named by cfg.Backend,
// wrapping the item repository in a vector-index decorator when
// cfg.VectorBackend names an external ANN store (spec.md §6.4's pluggable
// vector_backend knob), following internal/persistence/databases/factory.go's
// switch-on-backend-name construction style.
func openBackend(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	var repos *store.Store

	switch cfg.Backend {
	case config.BackendInMemory:
		categories := memstore.NewCategories()
		repos = &store.Store{
			Resources:     memstore.NewResources(),
			Items:         memstore.NewItems(),
			Categories:    categories,
			CategoryItems: memstore.NewCategoryItems(),
		}
	case config.BackendRelationalWithNativeVector, config.BackendRelationalWithoutVector:
		pool, err := openPgPool(ctx, cfg.Database.ConnectionString)
		if err != nil {
			return nil, err
		}
		pg, err := pgstore.Open(ctx, pool, cfg.Database.EmbeddingDim)
		if err != nil {
			return nil, err
		}
		repos = &store.Store{
			Resources:     pg.Resources,
			Items:         pg.Items,
			Categories:    pg.Categories,
			CategoryItems: pg.CategoryItems,
		}
	default:
		return nil, fmt.Errorf("engine: unsupported backend %q", cfg.Backend)
	}

	switch cfg.VectorBackend {
	case config.VectorBackendNone:
	case config.VectorBackendQdrant:
		dim := cfg.Database.EmbeddingDim
		index, err := qdrantindex.New(ctx, cfg.Qdrant.DSN, cfg.Qdrant.Collection, dim)
		if err != nil {
			return nil, fmt.Errorf("engine: open qdrant index: %w", err)
		}
		repos.Items = newVectorIndexedItems(repos.Items, index)
	case config.VectorBackendPgvector:
		if cfg.Backend == config.BackendInMemory {
			return nil, fmt.Errorf("engine: vector_backend pgvector requires a relational backend")
		}
	default:
		return nil, fmt.Errorf("engine: unsupported vector_backend %q", cfg.VectorBackend)
	}

	return repos, nil
}

// ensureCategoriesReady embeds the configured categories exactly once
// (spec.md §5): the first call blocks on EnsureCategories; every later
// call observes the cached result instantly via sync.Once.
func (s *Service) ensureCategoriesReady(ctx context.Context) error {
	s.categoriesOnce.Do(func() {
		embed := func(ctx context.Context, text string) ([]float32, error) {
			vectors, err := s.llm.Embed(ctx, "embedding", []string{text})
			if err != nil {
				return nil, err
			}
			if len(vectors) == 0 {
				return nil, fmt.Errorf("engine: embedding call returned no vectors")
			}
			return vectors[0], nil
		}
		s.categoriesErr = s.repos.Categories.EnsureCategories(ctx, s.cfg.CategoryDefinitions(), embed)
	})
	return s.categoriesErr
}

// Memorize runs the 7-step memorize pipeline for req.
func (s *Service) Memorize(ctx context.Context, req memorize.Request) (memorize.Response, error) {
	if err := s.ensureCategoriesReady(ctx); err != nil {
		return memorize.Response{}, fmt.Errorf("engine: category initialization: %w", err)
	}

	overrides := make(map[string]memorize.CategoryOverride, len(s.cfg.Categories))
	for name, ov := range s.cfg.CategoryOverrides() {
		overrides[name] = memorize.CategoryOverride{Prompt: ov.Prompt, TargetLength: ov.TargetLength}
	}

	state := &memorize.State{
		Request:                     req,
		MemoryTypes:                 s.cfg.MemoryTypes,
		CategoryAssignmentThreshold: s.cfg.CategoryAssignmentThreshold,
		SummaryTargetLength:         s.cfg.SummaryTargetLength,
		EnableItemReferences:        s.cfg.EnableItemReferences,
		MaxSegmentTokens:            s.cfg.MaxSegmentTokens,
		Prompts:                     s.cfg.PromptSet(),
		CategoryOverrides:           overrides,
	}

	caps := workflow.Capabilities{
		workflow.CapabilityLLM: s.llm,
		workflow.CapabilityDB:  s.repos,
		workflow.CapabilityIO:  memorize.IO{Fetcher: s.fetcher, ExtractFrame: s.extractFrame},
	}
	if err := s.memorizePipeline.Run(ctx, state, caps); err != nil {
		s.log.Error().Err(err).Str("stage", "memorize").Msg("memorize run failed")
		return memorize.Response{}, err
	}
	return state.Response, nil
}

// Retrieve runs the 7-step retrieve pipeline for req.
func (s *Service) Retrieve(ctx context.Context, req retrieve.Request, method model.RetrieveMethod) (retrieve.Response, error) {
	if err := s.ensureCategoriesReady(ctx); err != nil {
		return retrieve.Response{}, fmt.Errorf("engine: category initialization: %w", err)
	}

	state := &retrieve.State{
		Request:                    req,
		Method:                     method,
		Prompts:                    s.cfg.PromptSet(),
		EnableIntentionRouting:     s.cfg.Retrieve.EnableIntentionRouting,
		EnableCategoryRecall:       s.cfg.Retrieve.Category.Enabled(),
		EnableSufficiencyChecks:    s.cfg.Retrieve.EnableSufficiencyChecks,
		EnableResourceRecall:       s.cfg.Retrieve.Resource.Enabled(),
		EnableCategoryRefFollowing: s.cfg.Retrieve.EnableCategoryRefFollowing,
		CategoryTopK:               s.cfg.Retrieve.Category.TopK,
		ItemTopK:                   s.cfg.Retrieve.Item.TopK,
		ResourceTopK:               s.cfg.Retrieve.Resource.TopK,
		ItemRanking:                s.cfg.Retrieve.ItemRanking,
		RecencyHalfLifeDays:        s.cfg.Retrieve.RecencyHalfLifeDays,
	}

	caps := workflow.Capabilities{
		workflow.CapabilityLLM: s.llm,
		workflow.CapabilityDB:  s.repos,
	}
	if err := s.retrievePipeline.Run(ctx, state, caps); err != nil {
		s.log.Error().Err(err).Str("stage", "retrieve").Msg("retrieve run failed")
		return retrieve.Response{}, err
	}
	return state.Response, nil
}
