package local

import (
	"context"
	"testing"
	"time"

	"github.com/snow-ghost/combiner/core"
	"github.com/snow-ghost/combiner/solver/mock"
	"github.com/snow-ghost/combiner/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_AllowTactic(t *testing.T) {
	g := NewGuard([]string{"simplify", " SMT "})
	assert.True(t, g.AllowTactic("smt"))
	assert.True(t, g.AllowTactic("simplify"))
	assert.False(t, g.AllowTactic("bit-blast"))

	open := NewGuard(nil)
	assert.True(t, open.AllowTactic("anything"))
}

func TestGuard_WrapTimeout(t *testing.T) {
	g := NewGuard(nil)
	ctx := context.Background()
	budget := core.Budget{Timeout: 10 * time.Millisecond}

	start := time.Now()
	err := g.Wrap(ctx, budget, func(ctx context.Context) error {
		// Simulate long work
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
			return nil
		}
	})
	elapsed := time.Since(start)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, elapsed.Milliseconds(), int64(10))
}

func TestGuard_WrapSuccess(t *testing.T) {
	g := NewGuard(nil)
	err := g.Wrap(context.Background(), core.Budget{}, func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestBoundSolver(t *testing.T) {
	inner := mock.NewSolver(map[string]mock.Rule{
		"smt":      {Cost: 3, Solves: map[string]core.Result{"p": core.ResultSat}},
		"simplify": {Cost: 1},
	}, "size")
	s := NewGuard([]string{"smt"}).Bound(inner)

	out, err := s.Apply(context.Background(), mock.NewGoal("p", nil), strategy.Atomic("smt"), core.Budget{Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, core.ResultSat, out.Result)

	_, err = s.Apply(context.Background(), mock.NewGoal("p", nil), strategy.Sequence{strategy.Atomic("simplify"), strategy.Atomic("smt")}.Node(), core.Budget{})
	assert.ErrorIs(t, err, ErrTacticDenied)
	assert.Equal(t, int64(1), inner.Calls())
	assert.Equal(t, []string{"size"}, s.Probes())
}
