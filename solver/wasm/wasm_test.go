package wasm

import (
	"context"
	"testing"
	"time"

	"github.com/snow-ghost/combiner/core"
	"github.com/snow-ghost/combiner/corpus"
	"github.com/snow-ghost/combiner/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEcho(t *testing.T) *Solver {
	t.Helper()
	s, err := NewSolver(context.Background(), echoModule, Config{MemMB: 4})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func TestApplyRoundTrip(t *testing.T) {
	s := newEcho(t)
	f := corpus.Text("(declare-const x Int)(assert (> x 2))")

	out, err := s.Apply(context.Background(), f, strategy.Atomic("simplify"), core.Budget{Timeout: 5 * time.Second})
	require.NoError(t, err)
	// the echo carries no result, so the formula comes back undecided
	assert.Equal(t, core.ResultUnknown, out.Result)
	require.NotNil(t, out.Next)
	assert.Equal(t, f.Canonical(), out.Next.Canonical())
}

func TestProbeAndProbes(t *testing.T) {
	s := newEcho(t)

	v, err := s.Probe(context.Background(), corpus.Text("(assert true)"), "size")
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.Empty(t, s.Probes())
	assert.NoError(t, s.ProbesErr())
}

func TestProbesErrorIsReported(t *testing.T) {
	s, err := NewSolver(context.Background(), errorModule, Config{})
	require.NoError(t, err)
	defer s.Close(context.Background())

	assert.Empty(t, s.Probes())
	assert.ErrorContains(t, s.ProbesErr(), "no probes")

	_, err = s.Apply(context.Background(), corpus.Text("x"), strategy.Atomic("smt"), core.Budget{})
	assert.ErrorContains(t, err, "solver module: no probes")
}

func TestApplyNilTactic(t *testing.T) {
	s := newEcho(t)
	_, err := s.Apply(context.Background(), corpus.Text("x"), nil, core.Budget{})
	assert.ErrorIs(t, err, core.ErrEmptySequence)
}

func TestInvalidModule(t *testing.T) {
	_, err := NewSolver(context.Background(), []byte("invalid wasm"), Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile")
}

func TestOversizedRequest(t *testing.T) {
	s := newEcho(t)
	big := make([]byte, 70*1024)
	for i := range big {
		big[i] = 'a'
	}
	_, err := s.Apply(context.Background(), corpus.Text(big), strategy.Atomic("smt"), core.Budget{})
	assert.ErrorContains(t, err, "not enough memory")
}
