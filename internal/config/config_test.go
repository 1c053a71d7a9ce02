package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 3, cfg.MinImportanceForMemory)
	assert.Equal(t, 5, cfg.MaxMemoriesPerInteraction)
	assert.InDelta(t, 0.6, cfg.MemoryCreationConfidenceThreshold, 1e-9)
	assert.Equal(t, 30, cfg.MemoryAgingDays)
	assert.Equal(t, 60, cfg.MemoryArchivingDays)
	assert.Equal(t, "rules", cfg.ExtractorProvider)
	assert.Equal(t, 0.3, cfg.TypeBoosts["preference"])
	assert.Equal(t, 0.2, cfg.CategoryBoosts["health"])
	assert.Contains(t, cfg.PriorityTags, "medication")
	require.NoError(t, cfg.Validate())
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("MNEMO_PORT", "4444")
	t.Setenv("MNEMO_MIN_IMPORTANCE_FOR_MEMORY", "5")
	t.Setenv("MNEMO_PRIORITY_TAGS", "passport,visa")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4444, cfg.Port)
	assert.Equal(t, 5, cfg.MinImportanceForMemory)
	assert.Equal(t, []string{"passport", "visa"}, cfg.PriorityTags)
	assert.Equal(t, "127.0.0.1:4444", cfg.ListenAddr())
}

func TestLoadRejectsInvalidEnvironment(t *testing.T) {
	t.Setenv("MNEMO_IMPORTANCE_WEIGHT_BASE", "0.9")

	_, err := Load()
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "importance weights", cfgErr.Field)
}

func TestValidateWeightSums(t *testing.T) {
	t.Run("importance weights drift", func(t *testing.T) {
		cfg := Default()
		cfg.ImportanceWeightBase = 0.5
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "importance weights")
	})

	t.Run("retrieval weights drift", func(t *testing.T) {
		cfg := Default()
		cfg.RetrievalWeightRecency = 0.3
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "retrieval weights")
	})

	t.Run("tolerance accepts tiny drift", func(t *testing.T) {
		cfg := Default()
		cfg.ImportanceWeightTag += 0.0005
		assert.NoError(t, cfg.Validate())
	})

	t.Run("negative weight", func(t *testing.T) {
		cfg := Default()
		cfg.RetrievalWeightTag = -0.1
		cfg.RetrievalWeightContent = 0.8
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "non-negative")
	})
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "confidence threshold above one",
			mutate: func(c *Config) { c.MemoryCreationConfidenceThreshold = 1.5 },
			field:  "MEMORY_CREATION_CONFIDENCE_THRESHOLD",
		},
		{
			name:   "min importance out of scale",
			mutate: func(c *Config) { c.MinImportanceForMemory = 11 },
			field:  "MIN_IMPORTANCE_FOR_MEMORY",
		},
		{
			name:   "archiving before aging",
			mutate: func(c *Config) { c.MemoryAgingDays = 90 },
			field:  "MEMORY_ARCHIVING_DAYS",
		},
		{
			name:   "group size below two",
			mutate: func(c *Config) { c.MinGroupSizeForConsolidation = 1 },
			field:  "MIN_GROUP_SIZE_FOR_CONSOLIDATION",
		},
		{
			name:   "retrieved above candidates",
			mutate: func(c *Config) { c.MaxRetrievedMemories = 50 },
			field:  "MAX_RETRIEVED_MEMORIES",
		},
		{
			name:   "zero half life",
			mutate: func(c *Config) { c.RecencyHalfLifeDays = 0 },
			field:  "RECENCY_HALF_LIFE_DAYS",
		},
		{
			name:   "unknown provider",
			mutate: func(c *Config) { c.ExtractorProvider = "gpt" },
			field:  "EXTRACTOR_PROVIDER",
		},
		{
			name:   "type boost out of range",
			mutate: func(c *Config) { c.TypeBoosts["fact"] = 2 },
			field:  "TYPE_BOOSTS",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestIsPriorityTag(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.IsPriorityTag("medication"))
	assert.True(t, cfg.IsPriorityTag("Medication"))
	assert.False(t, cfg.IsPriorityTag("groceries"))
}
