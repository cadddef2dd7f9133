package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 40, cfg.ComplexityThreshold)
	assert.Equal(t, 5, cfg.MaxRounds)
	assert.Equal(t, 75, cfg.ConsensusMin)
	assert.Equal(t, 90, cfg.TargetConsensus)
	assert.False(t, cfg.EnableIterative)
	assert.Equal(t, 10*time.Second, cfg.LockTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryDelay)
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"complexity too high", func(c *Config) { c.ComplexityThreshold = 101 }, "complexity_threshold"},
		{"complexity negative", func(c *Config) { c.ComplexityThreshold = -1 }, "complexity_threshold"},
		{"max rounds zero", func(c *Config) { c.MaxRounds = 0 }, "max_rounds"},
		{"max rounds too high", func(c *Config) { c.MaxRounds = 11 }, "max_rounds"},
		{"consensus min too high", func(c *Config) { c.ConsensusMin = 150 }, "consensus_min"},
		{"target too low", func(c *Config) { c.TargetConsensus = 49 }, "target_consensus"},
		{"target too high", func(c *Config) { c.TargetConsensus = 101 }, "target_consensus"},
		{"negative improvement", func(c *Config) { c.MinImprovement = -1 }, "min_improvement"},
		{"negative regression", func(c *Config) { c.MaxRegression = -5 }, "max_regression"},
		{"zero lock timeout", func(c *Config) { c.LockTimeout = 0 }, "lock_timeout"},
		{"zero cleanup days", func(c *Config) { c.CleanupDays = 0 }, "cleanup_days"},
		{"negative retries", func(c *Config) { c.RetryAttempts = -1 }, "retry_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DEBATE_COMPLEXITY_THRESHOLD", "55")
	t.Setenv("DEBATE_TARGET_CONSENSUS", "95")
	t.Setenv("DEBATE_ENABLE_ITERATIVE", "yes")
	t.Setenv("DEBATE_LOCK_TIMEOUT", "2.5")
	t.Setenv("DEBATE_RETRY_DELAY", "0.25")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 55, cfg.ComplexityThreshold)
	assert.Equal(t, 95, cfg.TargetConsensus)
	assert.True(t, cfg.EnableIterative)
	assert.Equal(t, 2500*time.Millisecond, cfg.LockTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryDelay)
}

func TestLoadRejectsOutOfRange(t *testing.T) {
	t.Setenv("DEBATE_MAX_ROUNDS", "50")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_rounds")
}

func TestBoolParsing(t *testing.T) {
	for _, v := range []string{"true", "1", "yes", "on", "TRUE", "On"} {
		t.Setenv("ENABLE_AI_DEBATE", v)
		assert.True(t, envBool("ENABLE_AI_DEBATE", false), "value %q", v)
	}
	for _, v := range []string{"false", "0", "no", "off", "banana"} {
		t.Setenv("ENABLE_AI_DEBATE", v)
		assert.False(t, envBool("ENABLE_AI_DEBATE", true), "value %q", v)
	}
}

func TestDotenvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("DEBATE_MAX_ROUNDS=3\nDEBATE_CONSENSUS_MIN=60\n"), 0o644))

	t.Setenv("DEBATE_MAX_ROUNDS", "7")

	cfg, err := Load(dotenv)
	require.NoError(t, err)

	// Real environment wins; the dotenv file fills the rest.
	assert.Equal(t, 7, cfg.MaxRounds)
	assert.Equal(t, 60, cfg.ConsensusMin)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "debate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_rounds: 4\ntarget_consensus: 85\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MaxRounds)
	assert.Equal(t, 85, cfg.TargetConsensus)
	// Untouched fields keep their defaults.
	assert.Equal(t, 75, cfg.ConsensusMin)
}

func TestDebateRoot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TempDir = "/tmp/custom"
	assert.Equal(t, filepath.Join("/tmp/custom", "ai_debates"), cfg.DebateRoot())
}
