package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MinDataLen)
	assert.Equal(t, 16, cfg.ThresholdCount)
	assert.Equal(t, "file", cfg.Cache.Backend)
	assert.Equal(t, DefaultTimeoutCost, cfg.Penalty())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "combiner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
min_data_len: 4
quick: true
workers: 2
budget:
  timeout: 2s
  rlimit: 1000
cache:
  backend: sqlite
  path: cache.db
limiter:
  rps: 50
  breaker: true
`), 0o644))

	t.Setenv("COMBINER_WORKERS", "8")
	t.Setenv("COMBINER_ALLOW_TACTICS", "simplify, smt")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MinDataLen)
	assert.True(t, cfg.Quick)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 2*time.Second, cfg.Budget.Timeout)
	assert.Equal(t, int64(1000), cfg.Budget.RLimit)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.True(t, cfg.Limiter.Breaker)
	assert.Equal(t, []string{"simplify", "smt"}, cfg.Policy.AllowTactics)
	assert.Equal(t, DefaultQuickTimeoutCost, cfg.Penalty())
}

func TestValidate(t *testing.T) {
	_, err := LoadFromBytes([]byte("cache:\n  backend: redis\n"))
	assert.ErrorContains(t, err, "unknown cache backend")

	_, err = LoadFromBytes([]byte("min_data_len: 0\n"))
	assert.Error(t, err)

	cfg, err := LoadFromBytes([]byte("timeout_cost: 7\n"))
	require.NoError(t, err)
	assert.Equal(t, 7.0, cfg.Penalty())
}

func TestParseCommaSeparated(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseCommaSeparated(" a, ,b "))
	assert.Empty(t, parseCommaSeparated(""))
}
