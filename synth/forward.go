package synth

import (
	"context"
	"time"

	"github.com/snow-ghost/combiner/core"
	"github.com/snow-ghost/combiner/pkg/metrics"
	"github.com/snow-ghost/combiner/strategy"
	"golang.org/x/sync/errgroup"
)

// Runner applies tactics to instances for the synthesizer. Solver failures
// are charged Penalty and never surface as errors.
type Runner struct {
	Solver  core.Solver
	Budget  core.Budget
	Penalty float64
	Workers int
	Metrics *metrics.Metrics
}

func (r *Runner) apply(ctx context.Context, stage string, f core.Formula, n strategy.Node) (core.Outcome, error) {
	start := time.Now()
	out, err := core.Attempt(ctx, r.Solver, f, n, r.Budget, r.Penalty)
	if err != nil {
		return core.Outcome{}, err
	}
	r.Metrics.RecordSolverCall(stage, out.Result.String(), time.Since(start))
	return out, nil
}

// each runs fn for every index below n on at most Workers goroutines.
func (r *Runner) each(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, r.Workers))
	for i := 0; i < n; i++ {
		g.Go(func() error { return fn(gctx, i) })
	}
	return g.Wait()
}

// Forward advances instances through prefix. An instance is dropped when the
// prefix decides it, when the solver fails on it, or when the prefix leaves
// its formula unchanged. Survivors keep their order and carry the
// transformed formula.
func (r *Runner) Forward(ctx context.Context, instances []core.Instance, prefix strategy.Sequence) ([]core.Instance, error) {
	node := prefix.Node()
	if node == nil {
		return instances, nil
	}
	next := make([]core.Formula, len(instances))
	err := r.each(ctx, len(instances), func(ctx context.Context, i int) error {
		out, err := r.apply(ctx, "forward", instances[i].Formula, node)
		if err != nil {
			return err
		}
		if out.Result.Definite() || out.Next == nil {
			return nil
		}
		if out.Next.Canonical() == instances[i].Formula.Canonical() {
			return nil
		}
		next[i] = out.Next
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]core.Instance, 0, len(instances))
	for i, f := range next {
		if f != nil {
			out = append(out, instances[i].WithFormula(f))
		}
	}
	return out, nil
}

// SolveDataset runs seq on every instance and returns how many stayed
// undecided and the summed cost of the decided ones.
func (r *Runner) SolveDataset(ctx context.Context, instances []core.Instance, seq strategy.Sequence) (int, float64, error) {
	node := seq.Node()
	if node == nil {
		return len(instances), 0, core.ErrEmptySequence
	}
	outs := make([]core.Outcome, len(instances))
	err := r.each(ctx, len(instances), func(ctx context.Context, i int) error {
		out, err := r.apply(ctx, "dataset", instances[i].Formula, node)
		outs[i] = out
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	unsolved, cost := 0, 0.0
	for _, out := range outs {
		if out.Result.Definite() {
			cost += out.Cost
		} else {
			unsolved++
		}
	}
	return unsolved, cost, nil
}
