// Package evaluate runs a synthesized strategy over a corpus and compares it
// with the candidate sequences it was built from.
package evaluate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/snow-ghost/combiner/core"
	"github.com/snow-ghost/combiner/probe"
	"github.com/snow-ghost/combiner/strategy"
	"golang.org/x/sync/errgroup"
)

// Trace is what executing a strategy on one instance produced.
type Trace struct {
	Instance string
	Result   core.Result
	Cost     float64
	// Route lists the conditions evaluated, with their outcome.
	Route []string
}

// Stats aggregates traces. Cost sums decided instances only.
type Stats struct {
	Solved   int     `json:"solved"`
	Unsolved int     `json:"unsolved"`
	Cost     float64 `json:"cost"`
}

func (s *Stats) add(t Trace) {
	if t.Result.Definite() {
		s.Solved++
		s.Cost += t.Cost
	} else {
		s.Unsolved++
	}
}

// Score ranks the stats like candidate sequences are ranked.
func (s Stats) Score(index int) core.Score {
	return core.Score{Unsolved: s.Unsolved, Cost: s.Cost, Index: index}
}

// CandidateStats is one candidate sequence's result.
type CandidateStats struct {
	Sequence string `json:"sequence"`
	Stats
}

// Report compares the strategy with every candidate.
type Report struct {
	Instances  int              `json:"instances"`
	Strategy   Stats            `json:"strategy"`
	Candidates []CandidateStats `json:"candidates,omitempty"`
	// Best is the index of the best candidate, -1 without candidates.
	Best     int           `json:"best"`
	Duration time.Duration `json:"duration"`
}

// Evaluator executes strategies the way a solver front end would: prefix
// tactics run unconditionally and conditions are probed on the current
// formula.
type Evaluator struct {
	Solver  core.Solver
	Meter   *probe.Meter
	Budget  core.Budget
	Penalty float64
	Workers int
}

// Execute runs tree on inst. Execution stops at the first definite result
// or solver failure.
func (e *Evaluator) Execute(ctx context.Context, tree strategy.Node, inst core.Instance) (Trace, error) {
	tr := Trace{Instance: inst.Name}
	f := inst.Formula
	if _, err := e.walk(ctx, tree, &f, &tr); err != nil {
		return Trace{}, err
	}
	return tr, nil
}

// walk reports whether execution may continue.
func (e *Evaluator) walk(ctx context.Context, n strategy.Node, f *core.Formula, tr *Trace) (bool, error) {
	switch v := n.(type) {
	case strategy.Tactic:
		out, err := core.Attempt(ctx, e.Solver, *f, v, e.Budget, e.Penalty)
		if err != nil {
			return false, err
		}
		tr.Cost += out.Cost
		tr.Result = out.Result
		if out.Result.Definite() || out.Next == nil {
			return false, nil
		}
		*f = out.Next
		return true, nil
	case strategy.AndThen:
		for _, step := range v.Steps {
			more, err := e.walk(ctx, step, f, tr)
			if err != nil || !more {
				return false, err
			}
		}
		return true, nil
	case strategy.Cond:
		holds, err := e.Meter.Holds(ctx, v.If, *f)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return false, ctxErr
			}
			holds = false
		}
		tr.Route = append(tr.Route, fmt.Sprintf("%s=%t", v.If, holds))
		if holds {
			return e.walk(ctx, v.Then, f, tr)
		}
		return e.walk(ctx, v.Else, f, tr)
	case nil:
		return true, nil
	default:
		return false, fmt.Errorf("evaluate: unsupported node %T", n)
	}
}

// Run executes tree on every instance.
func (e *Evaluator) Run(ctx context.Context, tree strategy.Node, instances []core.Instance) ([]Trace, error) {
	traces := make([]Trace, len(instances))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, e.Workers))
	for i, inst := range instances {
		g.Go(func() error {
			tr, err := e.Execute(gctx, tree, inst)
			traces[i] = tr
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return traces, nil
}

// Evaluate runs tree and every candidate over instances and reports how
// the strategy compares.
func (e *Evaluator) Evaluate(ctx context.Context, tree strategy.Node, instances []core.Instance, candidates []strategy.Sequence) (*Report, error) {
	start := time.Now()
	rep := &Report{Instances: len(instances), Best: -1}

	traces, err := e.Run(ctx, tree, instances)
	if err != nil {
		return nil, err
	}
	for _, t := range traces {
		rep.Strategy.add(t)
	}

	for i, seq := range candidates {
		traces, err := e.Run(ctx, seq.Node(), instances)
		if err != nil {
			return nil, err
		}
		cs := CandidateStats{Sequence: seq.String()}
		for _, t := range traces {
			cs.add(t)
		}
		rep.Candidates = append(rep.Candidates, cs)
		if rep.Best < 0 || cs.Score(i).Less(rep.Candidates[rep.Best].Score(rep.Best)) {
			rep.Best = i
		}
	}
	rep.Duration = time.Since(start)

	slog.InfoContext(ctx, "evaluation finished",
		"instances", rep.Instances,
		"solved", rep.Strategy.Solved,
		"unsolved", rep.Strategy.Unsolved,
		"cost", rep.Strategy.Cost,
		"best_candidate", rep.Best,
	)
	return rep, nil
}
