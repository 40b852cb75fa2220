package config

import (
	"time"

	"github.com/snow-ghost/combiner/pkg/limiter"
	"github.com/snow-ghost/combiner/pkg/logging"
	"github.com/snow-ghost/combiner/pkg/tracing"
)

// Config holds the settings of a synthesis run
type Config struct {
	// MinDataLen is the dataset size below which no branching is attempted.
	MinDataLen int `yaml:"min_data_len"`
	// ThresholdCount bounds the order-statistic thresholds drawn per probe.
	ThresholdCount int `yaml:"threshold_count"`
	// TimeoutCost prices an absent cache entry; zero picks the mode default.
	TimeoutCost float64 `yaml:"timeout_cost"`
	// Quick stores whole-sequence costs instead of suffix vectors.
	Quick   bool         `yaml:"quick"`
	Workers int          `yaml:"workers"`
	Budget  BudgetConfig `yaml:"budget"`

	Cache   CacheConfig   `yaml:"cache"`
	Memo    MemoConfig    `yaml:"memo"`
	Policy  PolicyConfig  `yaml:"policy"`
	Limiter limiter.Config `yaml:"limiter"`
	Solver  SolverConfig  `yaml:"solver"`

	Logging logging.Config `yaml:"logging"`
	Tracing tracing.Config `yaml:"tracing"`
	Metrics MetricsConfig  `yaml:"metrics"`
}

// BudgetConfig bounds each solver call
type BudgetConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	RLimit  int64         `yaml:"rlimit"`
}

// CacheConfig selects the cost cache journal
type CacheConfig struct {
	Backend string `yaml:"backend"` // "file", "sqlite", "badger" or "none"
	Path    string `yaml:"path"`
}

// MemoConfig sizes the in-process LRU memos
type MemoConfig struct {
	Probes   int `yaml:"probes"`
	Formulas int `yaml:"formulas"`
}

// PolicyConfig restricts the tactics sent to the solver
type PolicyConfig struct {
	AllowTactics []string `yaml:"allow_tactics"`
}

// SolverConfig selects the solver backend
type SolverConfig struct {
	Backend string `yaml:"backend"` // "wasm"
	Module  string `yaml:"module"`  // path of the WASM solver module
	MemMB   int    `yaml:"mem_mb"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

const (
	// DefaultTimeoutCost prices a missing suffix-cost entry.
	DefaultTimeoutCost = 5e7
	// DefaultQuickTimeoutCost prices a missing whole-sequence entry.
	DefaultQuickTimeoutCost = 5e10
)

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		MinDataLen:     10,
		ThresholdCount: 16,
		Workers:        4,
		Budget:         BudgetConfig{Timeout: 5 * time.Second},
		Cache:          CacheConfig{Backend: "file", Path: "solve_cache.jsonl"},
		Memo:           MemoConfig{Probes: 1 << 16, Formulas: 4096},
		Solver:         SolverConfig{Backend: "wasm", MemMB: 256},
		Logging:        logging.DefaultConfig(),
		Tracing:        tracing.Config{ServiceName: "combiner"},
	}
}

// Penalty returns the configured timeout cost, or the default for the mode
func (c *Config) Penalty() float64 {
	if c.TimeoutCost > 0 {
		return c.TimeoutCost
	}
	if c.Quick {
		return DefaultQuickTimeoutCost
	}
	return DefaultTimeoutCost
}
