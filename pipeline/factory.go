package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/snow-ghost/combiner/core"
	"github.com/snow-ghost/combiner/costcache"
	"github.com/snow-ghost/combiner/pkg/config"
	"github.com/snow-ghost/combiner/pkg/limiter"
	"github.com/snow-ghost/combiner/pkg/metrics"
	"github.com/snow-ghost/combiner/policy/local"
	"github.com/snow-ghost/combiner/solver/wasm"
)

// NewSolver opens the configured solver backend and wraps it in the
// configured guards. The returned closer releases the backend.
func NewSolver(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (core.Solver, func(context.Context) error, error) {
	switch cfg.Solver.Backend {
	case "wasm", "":
		if cfg.Solver.Module == "" {
			return nil, nil, fmt.Errorf("solver.module is required for the wasm backend")
		}
		s, err := wasm.Open(ctx, cfg.Solver.Module, wasm.Config{MemMB: cfg.Solver.MemMB})
		if err != nil {
			return nil, nil, err
		}
		// without probes every tree would collapse to a single sequence
		if err := s.ProbesErr(); err != nil {
			s.Close(ctx)
			return nil, nil, err
		}
		return Guard(s, cfg, m), s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown solver backend %q", cfg.Solver.Backend)
	}
}

// Guard applies the tactic allowlist and per-call timeout, then rate
// limiting and the circuit breaker, around inner.
func Guard(inner core.Solver, cfg *config.Config, m *metrics.Metrics) core.Solver {
	bounded := local.NewGuard(cfg.Policy.AllowTactics).Bound(inner)
	return limiter.NewGuard(bounded, cfg.Limiter, m)
}

// NewJournal opens the configured cost cache journal.
func NewJournal(cfg *config.Config, logger *slog.Logger) (costcache.Journal, error) {
	var (
		j   costcache.Journal
		err error
	)
	switch cfg.Cache.Backend {
	case "file":
		var fj *costcache.FileJournal
		if fj, err = costcache.OpenFileJournal(cfg.Cache.Path); err == nil {
			j = fj
		}
	case "sqlite":
		var sj *costcache.SQLiteJournal
		if sj, err = costcache.OpenSQLiteJournal(cfg.Cache.Path); err == nil {
			j = sj
		}
	case "badger":
		var bj *costcache.BadgerJournal
		if bj, err = costcache.OpenBadgerJournal(costcache.BadgerConfig{Path: cfg.Cache.Path, SyncWrites: true, Logger: logger}); err == nil {
			j = bj
		}
	case "none":
		j = costcache.NewMemoryJournal()
	default:
		err = fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Mode maps the quick flag to a cache mode.
func Mode(cfg *config.Config) costcache.Mode {
	if cfg.Quick {
		return costcache.ModeQuick
	}
	return costcache.ModeFull
}
