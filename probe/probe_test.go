package probe

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/snow-ghost/combiner/core"
	"github.com/snow-ghost/combiner/pkg/metrics"
	"github.com/snow-ghost/combiner/solver/mock"
	"github.com/snow-ghost/combiner/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func instances(feature string, values ...float64) []core.Instance {
	out := make([]core.Instance, len(values))
	for i, v := range values {
		name := fmt.Sprintf("p%d", i)
		out[i] = core.Instance{Name: name, Formula: mock.NewGoal(name, map[string]float64{feature: v})}
	}
	return out
}

func newMeter(t *testing.T, probes ...string) *Meter {
	t.Helper()
	m, err := NewMeter(mock.NewSolver(nil, probes...), 128, nil)
	require.NoError(t, err)
	return m
}

func TestGenerateMidpointOnly(t *testing.T) {
	m := newMeter(t, "size", "flat")
	bank, err := Generate(context.Background(), m, instances("size", 1, 2, 9), 16)
	require.NoError(t, err)

	// "flat" is 0 everywhere and carries no information.
	require.Equal(t, 1, bank.Len())
	assert.Equal(t, strategy.Condition{Probe: "size", Threshold: 5}, bank.At(0))
}

func TestGenerateOrderStatistics(t *testing.T) {
	m := newMeter(t, "size")
	values := []float64{0.5, 1.5, 2.5, 3.5, 4.5, 5.5, 6.5, 7.5}
	bank, err := Generate(context.Background(), m, instances("size", values...), 4)
	require.NoError(t, err)

	var got []float64
	for _, c := range bank.Conditions() {
		got = append(got, c.Threshold)
	}
	// step 2: positions 0,2,4,6 truncated, then the midpoint 4.
	assert.Equal(t, []float64{0, 2, 4, 6}, got)
}

func TestGenerateEmpty(t *testing.T) {
	bank, err := Generate(context.Background(), newMeter(t, "size"), nil, 16)
	require.NoError(t, err)
	assert.Zero(t, bank.Len())
}

func TestSplitPartitions(t *testing.T) {
	m := newMeter(t, "size")
	data := instances("size", 1, 5, 3, 8, 2)
	c := strategy.Condition{Probe: "size", Threshold: 2.5}

	is, not, err := Split(context.Background(), m, c, data)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "p3"}, core.Names(is))
	assert.Equal(t, []string{"p0", "p4"}, core.Names(not))
	assert.Len(t, append(is, not...), len(data))
}

type brokenProbes struct{ core.Solver }

func (brokenProbes) Probe(context.Context, core.Formula, string) (float64, error) {
	return 0, errors.New("probe unsupported")
}

func TestSplitProbeFailureGoesToNotSide(t *testing.T) {
	m, err := NewMeter(brokenProbes{mock.NewSolver(nil, "size")}, 8, nil)
	require.NoError(t, err)

	is, not, err := Split(context.Background(), m, strategy.Condition{Probe: "size", Threshold: -1}, instances("size", 1, 2))
	require.NoError(t, err)
	assert.Empty(t, is)
	assert.Len(t, not, 2)

	bank, err := Generate(context.Background(), m, instances("size", 1, 2), 16)
	require.NoError(t, err)
	assert.Zero(t, bank.Len())
}

func TestMeterMemoizes(t *testing.T) {
	met := metrics.New()
	m, err := NewMeter(mock.NewSolver(nil, "size"), 8, met)
	require.NoError(t, err)
	g := mock.NewGoal("a", map[string]float64{"size": 4})

	for i := 0; i < 3; i++ {
		v, err := m.Value(context.Background(), g, "size")
		require.NoError(t, err)
		assert.Equal(t, 4.0, v)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(met.ProbeMemoHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(met.ProbeMemoMisses))

	ok, err := m.Holds(context.Background(), strategy.Condition{Probe: "size", Threshold: 3}, g)
	require.NoError(t, err)
	assert.True(t, ok)
}

// slowProbes blocks every probe until release is closed.
type slowProbes struct {
	*mock.Solver
	started chan struct{}
	release chan struct{}
}

func (s slowProbes) Probe(ctx context.Context, f core.Formula, name string) (float64, error) {
	s.started <- struct{}{}
	<-s.release
	return s.Solver.Probe(ctx, f, name)
}

func TestMeterCancelledCallerDoesNotFailOthers(t *testing.T) {
	s := slowProbes{Solver: mock.NewSolver(nil, "size"), started: make(chan struct{}, 2), release: make(chan struct{})}
	m, err := NewMeter(s, 8, nil)
	require.NoError(t, err)
	g := mock.NewGoal("a", map[string]float64{"size": 7})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := m.Value(ctx, g, "size")
		first <- err
	}()
	<-s.started

	second := make(chan float64, 1)
	go func() {
		v, err := m.Value(context.Background(), g, "size")
		assert.NoError(t, err)
		second <- v
	}()

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)
	close(s.release)
	assert.Equal(t, 7.0, <-second)
}
