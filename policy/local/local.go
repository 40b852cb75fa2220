package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/snow-ghost/combiner/core"
	"github.com/snow-ghost/combiner/strategy"
)

// ErrTacticDenied is returned for tactics outside the allowlist.
var ErrTacticDenied = errors.New("tactic not allowed")

// Guard enforces the per-call budget and an optional tactic allowlist
// - Wrap: enforces Budget.Timeout as a wall-clock deadline; the abandoned call keeps running in its goroutine
// - AllowTactic: name allowlist, empty means every tactic is allowed
// Note: RLimit is passed through to the solver, which enforces it.
type Guard struct {
	allow map[string]bool
}

func NewGuard(allowlist []string) *Guard {
	m := make(map[string]bool, len(allowlist))
	for _, n := range allowlist {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			m[n] = true
		}
	}
	return &Guard{allow: m}
}

// Wrap applies a timeout based on Budget and runs the function.
// A zero Timeout falls back to 30s.
func (g *Guard) Wrap(ctx context.Context, b core.Budget, run func(ctx context.Context) error) error {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- run(execCtx)
	}()

	select {
	case <-execCtx.Done():
		// return context error to signal timeout/cancel
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return context.DeadlineExceeded
		}
		return execCtx.Err()
	case err := <-done:
		return err
	}
}

// AllowTactic returns true if the tactic name is allowlisted.
func (g *Guard) AllowTactic(name string) bool {
	if len(g.allow) == 0 {
		return true
	}
	return g.allow[strings.ToLower(strings.TrimSpace(name))]
}

// Bound returns a solver whose applications respect the guard.
func (g *Guard) Bound(inner core.Solver) core.Solver {
	return &boundSolver{guard: g, inner: inner}
}

type boundSolver struct {
	guard *Guard
	inner core.Solver
}

func (s *boundSolver) Apply(ctx context.Context, f core.Formula, tactic strategy.Node, b core.Budget) (core.Outcome, error) {
	for _, t := range strategy.Tactics(tactic) {
		if !s.guard.AllowTactic(t.Name) {
			return core.Outcome{}, fmt.Errorf("%w: %s", ErrTacticDenied, t.Name)
		}
	}
	var out core.Outcome
	err := s.guard.Wrap(ctx, b, func(ctx context.Context) error {
		var err error
		out, err = s.inner.Apply(ctx, f, tactic, b)
		return err
	})
	if err != nil {
		return core.Outcome{}, err
	}
	return out, nil
}

func (s *boundSolver) Probe(ctx context.Context, f core.Formula, name string) (float64, error) {
	return s.inner.Probe(ctx, f, name)
}

func (s *boundSolver) Probes() []string {
	return s.inner.Probes()
}
