package core

import (
	"context"
	"errors"

	"github.com/snow-ghost/combiner/strategy"
)

// Solver is the black-box constraint solver.
type Solver interface {
	// Apply runs a tactic or tactic sequence on f within budget.
	Apply(ctx context.Context, f Formula, tactic strategy.Node, b Budget) (Outcome, error)
	// Probe evaluates a named scalar measurement on f.
	Probe(ctx context.Context, f Formula, name string) (float64, error)
	// Probes lists the available probe names.
	Probes() []string
}

// InstanceSource materializes instances by name.
type InstanceSource interface {
	Load(ctx context.Context, name string) (Formula, error)
}

// Attempt runs one application and folds solver failures into an unknown
// outcome charged with penalty and carrying no formula. It returns an error
// only when ctx is done or the solver is unavailable, so callers abort the
// run rather than record outcomes the solver never produced.
func Attempt(ctx context.Context, s Solver, f Formula, tactic strategy.Node, b Budget, penalty float64) (Outcome, error) {
	out, err := s.Apply(ctx, f, tactic, b)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		if errors.Is(err, ErrUnavailable) {
			return Outcome{}, err
		}
		return Outcome{Result: ResultUnknown, Cost: penalty}, nil
	}
	return out, nil
}
