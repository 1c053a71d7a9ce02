// Package config loads and validates the engine configuration.
//
// Config is loaded once at startup, validated, and then passed by value
// into every component constructor. Nothing mutates it at runtime, and
// changing it never rescales importance values already stored.
package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// envPrefix is the environment variable prefix, e.g. MNEMO_HTTP_PORT.
const envPrefix = "mnemo"

// weightTolerance is how far a weight group may drift from summing to 1.0.
const weightTolerance = 1e-3

// Config holds all mnemo configuration. Field defaults are the canonical
// engine parameters; override via MNEMO_* environment variables.
type Config struct {
	// Server
	Bind string `envconfig:"BIND" default:"127.0.0.1"`
	Port int    `envconfig:"PORT" default:"37778"`

	// Database. Empty means the default path under the user home dir.
	DBPath string `envconfig:"DB_PATH" default:""`

	// Admission
	MinImportanceForMemory            int     `envconfig:"MIN_IMPORTANCE_FOR_MEMORY" default:"3"`
	MaxMemoriesPerInteraction         int     `envconfig:"MAX_MEMORIES_PER_INTERACTION" default:"5"`
	MemoryCreationConfidenceThreshold float64 `envconfig:"MEMORY_CREATION_CONFIDENCE_THRESHOLD" default:"0.6"`

	// Importance scoring. The five weights must sum to 1.0.
	ImportanceWeightBase       float64 `envconfig:"IMPORTANCE_WEIGHT_BASE" default:"0.4"`
	ImportanceWeightConfidence float64 `envconfig:"IMPORTANCE_WEIGHT_CONFIDENCE" default:"0.2"`
	ImportanceWeightType       float64 `envconfig:"IMPORTANCE_WEIGHT_TYPE" default:"0.2"`
	ImportanceWeightCategory   float64 `envconfig:"IMPORTANCE_WEIGHT_CATEGORY" default:"0.1"`
	ImportanceWeightTag        float64 `envconfig:"IMPORTANCE_WEIGHT_TAG" default:"0.1"`

	// Per-type and per-category boosts, each in [0,1]. Unlisted keys score 0.
	TypeBoosts     map[string]float64 `envconfig:"TYPE_BOOSTS" default:"preference:0.3,fact:0.2,pattern:0.2,event:0.1,habit:0.2,goal:0.3"`
	CategoryBoosts map[string]float64 `envconfig:"CATEGORY_BOOSTS" default:"health:0.2,finance:0.2,family:0.1,work:0.1"`
	PriorityTags   []string           `envconfig:"PRIORITY_TAGS" default:"medication,allergy,birthday,deadline"`

	// Tag handling
	TagSuggestionConfidenceThreshold float64 `envconfig:"TAG_SUGGESTION_CONFIDENCE_THRESHOLD" default:"0.7"`
	MaxSuggestedTagsPerMemory        int     `envconfig:"MAX_SUGGESTED_TAGS_PER_MEMORY" default:"5"`

	// Consolidation
	TagSimilarityThreshold       float64 `envconfig:"TAG_SIMILARITY_THRESHOLD" default:"0.7"`
	ContentSimilarityThreshold   float64 `envconfig:"CONTENT_SIMILARITY_THRESHOLD" default:"0.6"`
	MinGroupSizeForConsolidation int     `envconfig:"MIN_GROUP_SIZE_FOR_CONSOLIDATION" default:"2"`

	// Lifecycle
	MemoryAgingDays        int `envconfig:"MEMORY_AGING_DAYS" default:"30"`
	MemoryArchivingDays    int `envconfig:"MEMORY_ARCHIVING_DAYS" default:"60"`
	LowImportanceThreshold int `envconfig:"LOW_IMPORTANCE_THRESHOLD" default:"3"`

	// Retrieval. The four weights must sum to 1.0.
	MaxCandidateMemories      int     `envconfig:"MAX_CANDIDATE_MEMORIES" default:"20"`
	MaxRetrievedMemories      int     `envconfig:"MAX_RETRIEVED_MEMORIES" default:"5"`
	MinImportanceForRetrieval int     `envconfig:"MIN_IMPORTANCE_FOR_RETRIEVAL" default:"3"`
	RetrievalWeightTag        float64 `envconfig:"RETRIEVAL_WEIGHT_TAG" default:"0.4"`
	RetrievalWeightContent    float64 `envconfig:"RETRIEVAL_WEIGHT_CONTENT" default:"0.3"`
	RetrievalWeightImportance float64 `envconfig:"RETRIEVAL_WEIGHT_IMPORTANCE" default:"0.2"`
	RetrievalWeightRecency    float64 `envconfig:"RETRIEVAL_WEIGHT_RECENCY" default:"0.1"`
	RecencyHalfLifeDays       float64 `envconfig:"RECENCY_HALF_LIFE_DAYS" default:"7"`

	// Extractor
	ExtractorProvider       string `envconfig:"EXTRACTOR_PROVIDER" default:"rules"` // "anthropic", "ollama", "rules"
	ExtractorTimeoutSeconds int    `envconfig:"EXTRACTOR_TIMEOUT_SECONDS" default:"30"`
	AnthropicKey            string `envconfig:"ANTHROPIC_KEY" default:""`
	AnthropicModel          string `envconfig:"ANTHROPIC_MODEL" default:"claude-haiku-4-5-20251001"`
	OllamaURL               string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	OllamaModel             string `envconfig:"OLLAMA_MODEL" default:"llama3.2"`

	// Background maintenance
	SweepIntervalHours       int `envconfig:"SWEEP_INTERVAL_HOURS" default:"24"`
	ConsolidateIntervalHours int `envconfig:"CONSOLIDATE_INTERVAL_HOURS" default:"24"`
}

// ConfigError indicates an invalid configuration. It is fatal at startup;
// the engine never silently corrects bad parameters.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Load reads configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the compiled-in default configuration, ignoring the
// process environment. Panics if the defaults are themselves invalid,
// which is a programming error.
func Default() Config {
	var cfg Config
	// envconfig only applies struct tag defaults during Process; an isolated
	// prefix keeps real MNEMO_* variables from leaking in.
	if err := envconfig.Process("mnemo_compiled_defaults", &cfg); err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

// Validate checks every constraint the engine depends on.
func (c *Config) Validate() error {
	if err := c.validateWeights("importance weights", []float64{
		c.ImportanceWeightBase, c.ImportanceWeightConfidence, c.ImportanceWeightType,
		c.ImportanceWeightCategory, c.ImportanceWeightTag,
	}); err != nil {
		return err
	}
	if err := c.validateWeights("retrieval weights", []float64{
		c.RetrievalWeightTag, c.RetrievalWeightContent,
		c.RetrievalWeightImportance, c.RetrievalWeightRecency,
	}); err != nil {
		return err
	}

	if c.MinImportanceForMemory < 0 || c.MinImportanceForMemory > 10 {
		return &ConfigError{"MIN_IMPORTANCE_FOR_MEMORY", "must be in [0,10]"}
	}
	if c.MinImportanceForRetrieval < 0 || c.MinImportanceForRetrieval > 10 {
		return &ConfigError{"MIN_IMPORTANCE_FOR_RETRIEVAL", "must be in [0,10]"}
	}
	if c.LowImportanceThreshold < 0 || c.LowImportanceThreshold > 10 {
		return &ConfigError{"LOW_IMPORTANCE_THRESHOLD", "must be in [0,10]"}
	}
	if c.MaxMemoriesPerInteraction <= 0 {
		return &ConfigError{"MAX_MEMORIES_PER_INTERACTION", "must be positive"}
	}
	if c.MaxSuggestedTagsPerMemory <= 0 {
		return &ConfigError{"MAX_SUGGESTED_TAGS_PER_MEMORY", "must be positive"}
	}
	if c.MaxCandidateMemories <= 0 {
		return &ConfigError{"MAX_CANDIDATE_MEMORIES", "must be positive"}
	}
	if c.MaxRetrievedMemories <= 0 || c.MaxRetrievedMemories > c.MaxCandidateMemories {
		return &ConfigError{"MAX_RETRIEVED_MEMORIES", "must be in (0, MAX_CANDIDATE_MEMORIES]"}
	}

	for _, p := range []struct {
		name string
		val  float64
	}{
		{"MEMORY_CREATION_CONFIDENCE_THRESHOLD", c.MemoryCreationConfidenceThreshold},
		{"TAG_SUGGESTION_CONFIDENCE_THRESHOLD", c.TagSuggestionConfidenceThreshold},
		{"TAG_SIMILARITY_THRESHOLD", c.TagSimilarityThreshold},
		{"CONTENT_SIMILARITY_THRESHOLD", c.ContentSimilarityThreshold},
	} {
		if p.val < 0 || p.val > 1 {
			return &ConfigError{p.name, "must be in [0,1]"}
		}
	}

	for t, b := range c.TypeBoosts {
		if b < 0 || b > 1 {
			return &ConfigError{"TYPE_BOOSTS", fmt.Sprintf("boost for %q must be in [0,1]", t)}
		}
	}
	for cat, b := range c.CategoryBoosts {
		if b < 0 || b > 1 {
			return &ConfigError{"CATEGORY_BOOSTS", fmt.Sprintf("boost for %q must be in [0,1]", cat)}
		}
	}

	if c.MinGroupSizeForConsolidation < 2 {
		return &ConfigError{"MIN_GROUP_SIZE_FOR_CONSOLIDATION", "must be at least 2"}
	}
	if c.MemoryAgingDays <= 0 {
		return &ConfigError{"MEMORY_AGING_DAYS", "must be positive"}
	}
	if c.MemoryArchivingDays < c.MemoryAgingDays {
		return &ConfigError{"MEMORY_ARCHIVING_DAYS", "must be >= MEMORY_AGING_DAYS"}
	}
	if c.RecencyHalfLifeDays <= 0 {
		return &ConfigError{"RECENCY_HALF_LIFE_DAYS", "must be positive"}
	}
	if c.ExtractorTimeoutSeconds <= 0 {
		return &ConfigError{"EXTRACTOR_TIMEOUT_SECONDS", "must be positive"}
	}

	switch c.ExtractorProvider {
	case "anthropic", "ollama", "rules":
	default:
		return &ConfigError{"EXTRACTOR_PROVIDER", fmt.Sprintf("unknown provider %q", c.ExtractorProvider)}
	}

	return nil
}

func (c *Config) validateWeights(name string, weights []float64) error {
	sum := 0.0
	for _, w := range weights {
		if w < 0 {
			return &ConfigError{name, "weights must be non-negative"}
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return &ConfigError{name, fmt.Sprintf("must sum to 1.0, got %.4f", sum)}
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// IsPriorityTag reports whether tag is on the configured priority list.
// Comparison is case-insensitive.
func (c *Config) IsPriorityTag(tag string) bool {
	for _, p := range c.PriorityTags {
		if strings.EqualFold(p, tag) {
			return true
		}
	}
	return false
}
