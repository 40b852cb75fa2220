// Package probe turns probe measurements into branch predicates.
package probe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/snow-ghost/combiner/core"
	"github.com/snow-ghost/combiner/pkg/metrics"
	"github.com/snow-ghost/combiner/strategy"
	"golang.org/x/sync/singleflight"
)

type memoKey struct {
	probe   string
	formula [sha256.Size]byte
}

// Meter evaluates probes through the solver and memoizes the values by
// probe name and formula canonical form. Probes are deterministic, so a
// value never goes stale. Concurrent misses on the same key share one call.
type Meter struct {
	solver  core.Solver
	memo    *lru.Cache[memoKey, float64]
	flight  singleflight.Group
	metrics *metrics.Metrics
}

// NewMeter creates a meter with an LRU memo of the given size.
func NewMeter(s core.Solver, size int, m *metrics.Metrics) (*Meter, error) {
	if size <= 0 {
		size = 1 << 16
	}
	memo, err := lru.New[memoKey, float64](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create probe memo: %w", err)
	}
	return &Meter{solver: s, memo: memo, metrics: m}, nil
}

// Value returns probe name evaluated on f.
func (m *Meter) Value(ctx context.Context, f core.Formula, name string) (float64, error) {
	key := memoKey{probe: name, formula: sha256.Sum256([]byte(f.Canonical()))}
	if v, ok := m.memo.Get(key); ok {
		m.metrics.RecordProbeMemo(true)
		return v, nil
	}
	m.metrics.RecordProbeMemo(false)
	// The shared call outlives any one caller, so it must not inherit that
	// caller's cancellation; each caller stops waiting on its own ctx.
	shared := context.WithoutCancel(ctx)
	ch := m.flight.DoChan(name+"/"+hex.EncodeToString(key.formula[:]), func() (interface{}, error) {
		v, err := m.solver.Probe(shared, f, name)
		if err != nil {
			return nil, err
		}
		m.memo.Add(key, v)
		return v, nil
	})
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, fmt.Errorf("probe %s: %w", name, res.Err)
		}
		return res.Val.(float64), nil
	}
}

// Holds evaluates c against f.
func (m *Meter) Holds(ctx context.Context, c strategy.Condition, f core.Formula) (bool, error) {
	v, err := m.Value(ctx, f, c.Probe)
	if err != nil {
		return false, err
	}
	return c.Holds(v), nil
}

// Probes lists the probe names the solver exposes.
func (m *Meter) Probes() []string {
	return m.solver.Probes()
}
