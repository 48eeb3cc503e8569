// Package config loads the YAML configuration an engine.Service is built
// from: storage backend selection, LLM profiles, category definitions,
// prompt overrides, and every retrieve/memorize toggle spec.md §6
// requires an implementer to expose. It follows internal/config/config.go's
// struct-of-YAML-tags shape, generalized from one monolithic Config to the
// knobs this engine actually has.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"memu/internal/memu/llmclient"
	"memu/internal/memu/model"
	"memu/internal/memu/prompts"
	"memu/internal/memu/store"
)

// Backend selects the memorize/retrieve storage implementation.
type Backend string

const (
	BackendInMemory                   Backend = "inmemory"
	BackendRelationalWithNativeVector Backend = "relational-with-native-vectors"
	BackendRelationalWithoutVector    Backend = "relational-without"
)

// VectorBackend selects where item vector search runs. Empty leaves it to
// the primary store; pgvector uses the relational backend's own vector
// columns and is rejected with the in-memory backend; qdrant mirrors item
// embeddings into Qdrant and answers item search from it, whatever the
// primary backend.
type VectorBackend string

const (
	VectorBackendNone     VectorBackend = ""
	VectorBackendPgvector VectorBackend = "pgvector"
	VectorBackendQdrant   VectorBackend = "qdrant"
)

// CategoryConfig is one configured category: name, description, and an
// optional per-category override of the summary prompt/target length.
type CategoryConfig struct {
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	SummaryPrompt string `yaml:"summary_prompt,omitempty"`
	TargetLength  int    `yaml:"target_length,omitempty"`
}

// DatabaseConfig configures the relational backend's connection and
// embedding dimensionality (needed to size pgvector columns up front).
type DatabaseConfig struct {
	ConnectionString string `yaml:"connection_string,omitempty"`
	EmbeddingDim     int    `yaml:"embedding_dim,omitempty"`
}

// QdrantConfig configures the alternative Qdrant vector index.
type QdrantConfig struct {
	DSN        string `yaml:"dsn,omitempty"`
	Collection string `yaml:"collection,omitempty"`
}

// TierConfig is one retrieve recall tier's enable/top-k pair. The zero
// value recalls (Disabled defaults false, meaning enabled) so a config
// that never mentions a tier still runs it, per spec.md §6.4's "recall
// tiers run by default; list what to turn off" phrasing. The engine
// consults Disabled for the category and resource tiers only: item recall
// runs whenever retrieval reaches that tier, whatever Item.Disabled says.
type TierConfig struct {
	Disabled bool `yaml:"disabled,omitempty"`
	TopK     int  `yaml:"top_k"`
}

// Enabled reports whether this tier should run.
func (t TierConfig) Enabled() bool { return !t.Disabled }

// RetrieveConfig exposes every retrieve-side toggle spec.md §6.4 names.
type RetrieveConfig struct {
	Method                     model.RetrieveMethod `yaml:"method"`
	EnableIntentionRouting     bool                  `yaml:"enable_intention_routing"`
	EnableSufficiencyChecks    bool                  `yaml:"enable_sufficiency_checks"`
	EnableCategoryRefFollowing bool                  `yaml:"enable_category_ref_following"`
	Category                   TierConfig            `yaml:"category"`
	Item                       TierConfig            `yaml:"item"`
	Resource                   TierConfig            `yaml:"resource"`
	ItemRanking                model.RankingStrategy `yaml:"item_ranking"`
	RecencyHalfLifeDays        float64               `yaml:"recency_half_life_days"`
}

// Config is the full engine configuration loaded from YAML.
type Config struct {
	Backend       Backend       `yaml:"backend"`
	VectorBackend VectorBackend `yaml:"vector_backend,omitempty"`
	LogLevel      string        `yaml:"log_level,omitempty"`

	Database DatabaseConfig `yaml:"database,omitempty"`
	Qdrant   QdrantConfig   `yaml:"qdrant,omitempty"`

	LLMProfiles map[string]llmclient.Profile `yaml:"llm_profiles"`

	Categories []CategoryConfig `yaml:"categories"`

	// PreprocessPrompts and ExtractionPrompts hold user overrides keyed by
	// modality/memory-type name; a missing key composes entirely from the
	// built-in default block catalogue (spec.md §4.7).
	PreprocessPrompts map[model.Modality]string   `yaml:"preprocess_prompts,omitempty"`
	ExtractionPrompts map[model.MemoryType]string `yaml:"extraction_prompts,omitempty"`

	MemoryTypes                 []model.MemoryType `yaml:"memory_types,omitempty"`
	CategoryAssignmentThreshold float64            `yaml:"category_assignment_threshold"`
	SummaryTargetLength         int                `yaml:"summary_target_length"`
	EnableItemReferences        bool               `yaml:"enable_item_references"`
	EnableItemReinforcement     bool               `yaml:"enable_item_reinforcement"`
	// MaxSegmentTokens caps a document/text segment's approximate token
	// count before preprocess splits it into more than one extraction
	// segment. 0 or a negative value is replaced by the default of 2000.
	MaxSegmentTokens int `yaml:"max_segment_tokens,omitempty"`

	Retrieve RetrieveConfig `yaml:"retrieve"`
}

const (
	defaultCategoryAssignmentThreshold = 0.6
	defaultSummaryTargetLength         = 400
	defaultRecencyHalfLifeDays         = vectorindexDefaultHalfLife
	defaultTopK                        = 5
	defaultMaxSegmentTokens            = 2000
)

// vectorindexDefaultHalfLife mirrors vectorindex.DefaultRecencyDecayDays
// without importing that package purely for a numeric constant.
const vectorindexDefaultHalfLife = 30.0

// Load reads and validates a YAML configuration file, filling in defaults
// for anything the file leaves zero-valued.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendInMemory
	}
	if c.CategoryAssignmentThreshold <= 0 {
		c.CategoryAssignmentThreshold = defaultCategoryAssignmentThreshold
	}
	if c.SummaryTargetLength <= 0 {
		c.SummaryTargetLength = defaultSummaryTargetLength
	}
	if c.MaxSegmentTokens <= 0 {
		c.MaxSegmentTokens = defaultMaxSegmentTokens
	}
	if len(c.MemoryTypes) == 0 {
		c.MemoryTypes = model.AllMemoryTypes()
	}
	if c.Retrieve.Method == "" {
		c.Retrieve.Method = model.RetrieveMethodRAG
	}
	if c.Retrieve.ItemRanking == "" {
		c.Retrieve.ItemRanking = model.RankingSalience
	}
	if c.Retrieve.RecencyHalfLifeDays <= 0 {
		c.Retrieve.RecencyHalfLifeDays = defaultRecencyHalfLifeDays
	}
	for _, tier := range []*TierConfig{&c.Retrieve.Category, &c.Retrieve.Item, &c.Retrieve.Resource} {
		if tier.TopK <= 0 {
			tier.TopK = defaultTopK
		}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate rejects a configuration that cannot build a working service.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendInMemory, BackendRelationalWithNativeVector, BackendRelationalWithoutVector:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.Backend != BackendInMemory && c.Database.ConnectionString == "" {
		return fmt.Errorf("config: backend %q requires database.connection_string", c.Backend)
	}
	if len(c.LLMProfiles) == 0 {
		return fmt.Errorf("config: at least one llm_profiles entry is required")
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("config: at least one category is required")
	}
	for _, mt := range c.MemoryTypes {
		if !mt.IsValid() {
			return fmt.Errorf("config: unknown memory type %q", mt)
		}
	}
	switch c.Retrieve.Method {
	case model.RetrieveMethodRAG, model.RetrieveMethodLLM:
	default:
		return fmt.Errorf("config: unknown retrieve method %q", c.Retrieve.Method)
	}
	switch c.Retrieve.ItemRanking {
	case model.RankingSimilarity, model.RankingSalience:
	default:
		return fmt.Errorf("config: unknown item ranking %q", c.Retrieve.ItemRanking)
	}
	return nil
}

// CategoryDefinitions converts the configured categories into the shape
// store.CategoryRepo.EnsureCategories expects.
func (c *Config) CategoryDefinitions() []store.CategoryDefinition {
	defs := make([]store.CategoryDefinition, len(c.Categories))
	for i, cat := range c.Categories {
		defs[i] = store.CategoryDefinition{Name: cat.Name, Description: cat.Description}
	}
	return defs
}

// PromptSet builds a prompts.Set from the configured overrides, falling
// back to built-in defaults for anything left unset (spec.md §4.7).
func (c *Config) PromptSet() *prompts.Set {
	set := prompts.NewSet(c.EnableItemReferences)
	for modality, literal := range c.PreprocessPrompts {
		set.Preprocess[modality] = prompts.Spec{Literal: literal}
	}
	for memoryType, literal := range c.ExtractionPrompts {
		set.Extraction[memoryType] = prompts.Spec{Literal: literal}
	}
	return set
}

// CategoryOverrides builds the per-category custom summary prompt/target
// length map memorize.State.CategoryOverrides expects, keyed by category
// name (spec.md §6.4).
func (c *Config) CategoryOverrides() map[string]CategoryOverride {
	overrides := make(map[string]CategoryOverride)
	for _, cat := range c.Categories {
		if cat.SummaryPrompt == "" && cat.TargetLength == 0 {
			continue
		}
		overrides[cat.Name] = CategoryOverride{
			Prompt:       prompts.Spec{Literal: cat.SummaryPrompt},
			TargetLength: cat.TargetLength,
		}
	}
	return overrides
}

// CategoryOverride mirrors memorize.CategoryOverride; config does not
// import memorize (pipeline packages depend on config, not vice versa), so
// engine.Service converts this shape at the call site.
type CategoryOverride struct {
	Prompt       prompts.Spec
	TargetLength int
}

// RecencyHalfLife returns the configured half-life as a time.Duration
// measured in days, for callers that want a typed duration rather than a
// raw float.
func (c *Config) RecencyHalfLife() time.Duration {
	return time.Duration(c.Retrieve.RecencyHalfLifeDays * float64(24*time.Hour))
}
