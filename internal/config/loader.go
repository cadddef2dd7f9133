package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Load builds a Config from the environment. When dotenvPath is non-empty
// and the file exists, it seeds variables that are not already present in
// the environment; real environment variables always win.
func Load(dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		if _, err := os.Stat(dotenvPath); err == nil {
			// godotenv.Load never overwrites variables already set.
			if err := godotenv.Load(dotenvPath); err != nil {
				return nil, fmt.Errorf("loading dotenv file %s: %w", dotenvPath, err)
			}
		}
	}

	cfg := DefaultConfig()

	cfg.Enabled = envBool("ENABLE_AI_DEBATE", cfg.Enabled)
	cfg.ComplexityThreshold = envInt("DEBATE_COMPLEXITY_THRESHOLD", cfg.ComplexityThreshold)
	cfg.MaxRounds = envInt("DEBATE_MAX_ROUNDS", cfg.MaxRounds)
	cfg.ConsensusMin = envInt("DEBATE_CONSENSUS_MIN", cfg.ConsensusMin)
	cfg.TargetConsensus = envInt("DEBATE_TARGET_CONSENSUS", cfg.TargetConsensus)
	cfg.EnableIterative = envBool("DEBATE_ENABLE_ITERATIVE", cfg.EnableIterative)
	cfg.MinImprovement = envInt("DEBATE_MIN_IMPROVEMENT", cfg.MinImprovement)
	cfg.MaxRegression = envInt("DEBATE_MAX_REGRESSION", cfg.MaxRegression)
	cfg.TempDir = envString("DEBATE_TEMP_DIR", cfg.TempDir)
	cfg.CleanupDays = envInt("DEBATE_CLEANUP_DAYS", cfg.CleanupDays)
	cfg.PersistHistory = envBool("DEBATE_PERSIST_HISTORY", cfg.PersistHistory)
	cfg.ScrubSecrets = envBool("DEBATE_SCRUB_SECRETS", cfg.ScrubSecrets)
	cfg.LockTimeout = envSeconds("DEBATE_LOCK_TIMEOUT", cfg.LockTimeout)
	cfg.RetryAttempts = envInt("DEBATE_RETRY_ATTEMPTS", cfg.RetryAttempts)
	cfg.RetryDelay = envSeconds("DEBATE_RETRY_DELAY", cfg.RetryDelay)
	cfg.LogLevel = envString("DEBATE_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = envString("DEBATE_LOG_FILE", cfg.LogFile)
	cfg.Debug = envBool("DEBATE_DEBUG", cfg.Debug)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFile reads a YAML configuration file over the defaults and validates
// the result.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

// NewLogger builds a logrus logger honoring LogLevel, LogFile and Debug.
func (c *Config) NewLogger() *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		level = logrus.InfoLevel
	}
	if c.Debug {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)

	if c.LogFile != "" {
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			log.SetOutput(f)
		} else {
			log.WithError(err).Warn("cannot open log file, logging to stderr")
		}
	}
	return log
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// envBool accepts true/1/yes/on (case-insensitive) as true; anything else
// present in the environment is false.
func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

// envSeconds parses a float number of seconds into a duration.
func envSeconds(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f < 0 {
		return fallback
	}
	return time.Duration(f * float64(time.Second))
}
