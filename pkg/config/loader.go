package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles loading run configuration
type Loader struct {
	configPath string
}

// NewLoader creates a new configuration loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads the YAML file over the defaults, then applies COMBINER_*
// environment overrides. A missing file yields the defaults.
func (l *Loader) Load() (*Config, error) {
	// Check if config path is provided via environment
	if configPath := os.Getenv("COMBINER_CONFIG"); configPath != "" && l.configPath == "" {
		l.configPath = configPath
	}

	cfg := Default()
	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		switch {
		case os.IsNotExist(err):
			// keep defaults
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configPath, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse YAML config: %w", err)
			}
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromBytes parses configuration from YAML data over the defaults
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the synthesizer cannot run with
func (c *Config) Validate() error {
	if c.MinDataLen < 1 {
		return fmt.Errorf("min_data_len must be positive, got %d", c.MinDataLen)
	}
	if c.ThresholdCount < 1 {
		return fmt.Errorf("threshold_count must be positive, got %d", c.ThresholdCount)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	switch c.Cache.Backend {
	case "file", "sqlite", "badger", "none":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.MinDataLen = getEnvInt("COMBINER_MIN_DATA_LEN", cfg.MinDataLen)
	cfg.ThresholdCount = getEnvInt("COMBINER_THRESHOLD_COUNT", cfg.ThresholdCount)
	cfg.Workers = getEnvInt("COMBINER_WORKERS", cfg.Workers)
	cfg.Quick = getEnvBool("COMBINER_QUICK", cfg.Quick)
	cfg.Budget.Timeout = getEnvDuration("COMBINER_BUDGET_TIMEOUT", cfg.Budget.Timeout)
	cfg.Cache.Backend = getEnv("COMBINER_CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.Path = getEnv("COMBINER_CACHE_PATH", cfg.Cache.Path)
	cfg.Solver.Module = getEnv("COMBINER_SOLVER_MODULE", cfg.Solver.Module)
	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Tracing.JaegerEndpoint = getEnv("JAEGER_ENDPOINT", cfg.Tracing.JaegerEndpoint)
	cfg.Metrics.Addr = getEnv("COMBINER_METRICS_ADDR", cfg.Metrics.Addr)
	if tactics := parseCommaSeparated(os.Getenv("COMBINER_ALLOW_TACTICS")); len(tactics) > 0 {
		cfg.Policy.AllowTactics = tactics
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseCommaSeparated parses a comma-separated string into a slice
func parseCommaSeparated(value string) []string {
	if value == "" {
		return []string{}
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
