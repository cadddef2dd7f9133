// Package config provides the typed configuration for the debate pipeline.
// Values are populated from the environment under the DEBATE_ prefix, with
// an optional dotenv file seeding variables not already set, and an optional
// YAML file for full overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds every tunable of the debate pipeline. All ranges are
// validated by Validate; a Config that fails validation must not be used.
type Config struct {
	// Enabled toggles the whole debate subsystem.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// ComplexityThreshold is the minimum complexity score (0-100) at which
	// the enforcement gate requires a debate.
	ComplexityThreshold int `yaml:"complexity_threshold" json:"complexity_threshold"`

	// MaxRounds bounds both session rounds and iterative-engine iterations.
	MaxRounds int `yaml:"max_rounds" json:"max_rounds"`

	// ConsensusMin is the minimum consensus score considered acceptable.
	ConsensusMin int `yaml:"consensus_min" json:"consensus_min"`

	// TargetConsensus is the score the iterative engine drives toward.
	TargetConsensus int `yaml:"target_consensus" json:"target_consensus"`

	// EnableIterative enables the revise-and-redebate loop.
	EnableIterative bool `yaml:"enable_iterative" json:"enable_iterative"`

	// MinImprovement is the minimum consensus gain per iteration before the
	// engine flags stagnation.
	MinImprovement int `yaml:"min_improvement" json:"min_improvement"`

	// MaxRegression is the largest tolerated consensus drop between
	// iterations before the engine flags a regression.
	MaxRegression int `yaml:"max_regression" json:"max_regression"`

	// TempDir is the root under which per-user session trees are created.
	// Empty means the OS temp directory.
	TempDir string `yaml:"temp_dir" json:"temp_dir"`

	// CleanupDays is the session age cutoff for Cleanup.
	CleanupDays int `yaml:"cleanup_days" json:"cleanup_days"`

	// PersistHistory enables the on-disk debate history store.
	PersistHistory bool `yaml:"persist_history" json:"persist_history"`

	// ScrubSecrets enables secret scrubbing of persisted proposals.
	ScrubSecrets bool `yaml:"scrub_secrets" json:"scrub_secrets"`

	// LockTimeout bounds advisory file-lock acquisition.
	LockTimeout time.Duration `yaml:"lock_timeout" json:"lock_timeout"`

	// RetryAttempts is the adapter retry budget after the first attempt.
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts"`

	// RetryDelay is the base delay between adapter retries.
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`

	// LogLevel is a logrus level name (debug, info, warn, error).
	LogLevel string `yaml:"log_level" json:"log_level"`

	// LogFile, when set, receives log output instead of stderr.
	LogFile string `yaml:"log_file" json:"log_file"`

	// Debug forces debug-level logging regardless of LogLevel.
	Debug bool `yaml:"debug" json:"debug"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:             true,
		ComplexityThreshold: 40,
		MaxRounds:           5,
		ConsensusMin:        75,
		TargetConsensus:     90,
		EnableIterative:     false,
		MinImprovement:      5,
		MaxRegression:       10,
		TempDir:             "",
		CleanupDays:         7,
		PersistHistory:      true,
		ScrubSecrets:        true,
		LockTimeout:         10 * time.Second,
		RetryAttempts:       3,
		RetryDelay:          500 * time.Millisecond,
		LogLevel:            "INFO",
		Debug:               false,
	}
}

// Validate checks every range constraint. The first violation is returned.
func (c *Config) Validate() error {
	if c.ComplexityThreshold < 0 || c.ComplexityThreshold > 100 {
		return fmt.Errorf("complexity_threshold must be in [0, 100], got %d", c.ComplexityThreshold)
	}
	if c.MaxRounds < 1 || c.MaxRounds > 10 {
		return fmt.Errorf("max_rounds must be in [1, 10], got %d", c.MaxRounds)
	}
	if c.ConsensusMin < 0 || c.ConsensusMin > 100 {
		return fmt.Errorf("consensus_min must be in [0, 100], got %d", c.ConsensusMin)
	}
	if c.TargetConsensus < 50 || c.TargetConsensus > 100 {
		return fmt.Errorf("target_consensus must be in [50, 100], got %d", c.TargetConsensus)
	}
	if c.MinImprovement < 0 {
		return fmt.Errorf("min_improvement must be >= 0, got %d", c.MinImprovement)
	}
	if c.MaxRegression < 0 {
		return fmt.Errorf("max_regression must be >= 0, got %d", c.MaxRegression)
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("lock_timeout must be positive, got %s", c.LockTimeout)
	}
	if c.CleanupDays <= 0 {
		return fmt.Errorf("cleanup_days must be positive, got %d", c.CleanupDays)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts must be >= 0, got %d", c.RetryAttempts)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry_delay must be >= 0, got %s", c.RetryDelay)
	}
	return nil
}

// EffectiveTempDir resolves TempDir, falling back to the OS temp directory.
func (c *Config) EffectiveTempDir() string {
	if c.TempDir != "" {
		return c.TempDir
	}
	return os.TempDir()
}

// DebateRoot is the directory holding all per-user session trees.
func (c *Config) DebateRoot() string {
	return filepath.Join(c.EffectiveTempDir(), "ai_debates")
}
