package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variables that override the config file:
//   - CLEWCREW_CONCURRENCY: experts run at once (default: 4)
//   - CLEWCREW_EXPERT_TIMEOUT: per-expert time limit, e.g. "45s" (default: 2m)
//   - CLEWCREW_MAX_READS_PER_SECOND: artifact read throttle, 0 disables (default: 0)
const (
	envConcurrency       = "CLEWCREW_CONCURRENCY"
	envExpertTimeout     = "CLEWCREW_EXPERT_TIMEOUT"
	envMaxReadsPerSecond = "CLEWCREW_MAX_READS_PER_SECOND"
)

// applyEnv overlays environment overrides on the file configuration.
func (c *FileConfig) applyEnv() error {
	if err := parseEnvInt(envConcurrency, &c.Concurrency); err != nil {
		return err
	}
	if err := parseEnvString(envExpertTimeout, &c.ExpertTimeout); err != nil {
		return err
	}
	if err := parseEnvFloat(envMaxReadsPerSecond, &c.MaxReadsPerSecond); err != nil {
		return err
	}
	return nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvFloat parses a float from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString parses a string from an environment variable
func parseEnvString(key string, dest *string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	*dest = value
	return nil
}
