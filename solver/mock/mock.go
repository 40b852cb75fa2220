package mock

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/snow-ghost/combiner/core"
	"github.com/snow-ghost/combiner/strategy"
)

// ErrCrash is returned by tactics scripted to fail on a problem.
var ErrCrash = errors.New("mock solver crash")

// Goal is the mock formula: a problem with scalar features and the trail of
// tactics applied to it so far.
type Goal struct {
	Problem  string
	Features map[string]float64
	Trail    []string
}

// NewGoal returns a fresh goal for problem.
func NewGoal(problem string, features map[string]float64) *Goal {
	return &Goal{Problem: problem, Features: maps.Clone(features)}
}

func (g *Goal) Canonical() string {
	var b strings.Builder
	b.WriteString(g.Problem)
	keys := slices.Sorted(maps.Keys(g.Features))
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(strconv.FormatFloat(g.Features[k], 'g', -1, 64))
	}
	for _, t := range g.Trail {
		b.WriteString(">")
		b.WriteString(t)
	}
	return b.String()
}

func (g *Goal) next(tactic string, effects map[string]float64) *Goal {
	n := &Goal{Problem: g.Problem, Features: maps.Clone(g.Features), Trail: append(slices.Clone(g.Trail), tactic)}
	if n.Features == nil && len(effects) > 0 {
		n.Features = make(map[string]float64)
	}
	for k, d := range effects {
		n.Features[k] += d
	}
	return n
}

// Rule scripts the behavior of one tactic.
type Rule struct {
	Cost    float64                // cost when no per-problem cost is set
	Costs   map[string]float64     // per-problem cost
	Solves  map[string]core.Result // problems this tactic decides
	Fails   map[string]bool        // problems on which the tactic crashes
	Noop    bool                   // the goal comes back unchanged
	Effects map[string]float64     // feature deltas applied to the goal
}

// Solver is a deterministic scripted core.Solver.
type Solver struct {
	rules  map[string]Rule
	probes []string
	calls  atomic.Int64
}

// NewSolver builds a solver from tactic rules and the probe names it exposes.
func NewSolver(rules map[string]Rule, probes ...string) *Solver {
	ps := slices.Clone(probes)
	sort.Strings(ps)
	return &Solver{rules: rules, probes: ps}
}

// Calls returns how many Apply calls reached the solver.
func (s *Solver) Calls() int64 {
	return s.calls.Load()
}

func (s *Solver) Apply(ctx context.Context, f core.Formula, tactic strategy.Node, b core.Budget) (core.Outcome, error) {
	s.calls.Add(1)
	g, ok := f.(*Goal)
	if !ok {
		return core.Outcome{}, fmt.Errorf("mock solver: unsupported formula %T", f)
	}
	out := core.Outcome{Result: core.ResultUnknown, Next: g}
	if err := s.run(ctx, tactic, b, &out); err != nil {
		return core.Outcome{}, err
	}
	return out, nil
}

func (s *Solver) run(ctx context.Context, n strategy.Node, b core.Budget, out *core.Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch v := n.(type) {
	case strategy.Tactic:
		return s.step(v, b, out)
	case strategy.AndThen:
		for _, st := range v.Steps {
			if err := s.run(ctx, st, b, out); err != nil {
				return err
			}
			if out.Result.Definite() {
				return nil
			}
		}
		return nil
	case strategy.Cond:
		value, err := s.Probe(ctx, out.Next, v.If.Probe)
		if err != nil {
			return err
		}
		if v.If.Holds(value) {
			return s.run(ctx, v.Then, b, out)
		}
		return s.run(ctx, v.Else, b, out)
	default:
		return fmt.Errorf("mock solver: unsupported node %T", n)
	}
}

func (s *Solver) step(t strategy.Tactic, b core.Budget, out *core.Outcome) error {
	rule, ok := s.rules[t.Name]
	if !ok {
		return fmt.Errorf("mock solver: unknown tactic %q", t.Name)
	}
	g := out.Next.(*Goal)
	if rule.Fails[g.Problem] {
		return fmt.Errorf("%w: %s on %s", ErrCrash, t.Name, g.Problem)
	}
	cost := rule.Cost
	if c, ok := rule.Costs[g.Problem]; ok {
		cost = c
	}
	out.Cost += cost
	if b.RLimit > 0 && out.Cost > float64(b.RLimit) {
		out.Cost = float64(b.RLimit)
		out.Result = core.ResultUnknown
		return nil
	}
	out.Result = rule.Solves[g.Problem]
	if !rule.Noop {
		out.Next = g.next(t.String(), rule.Effects)
	}
	return nil
}

func (s *Solver) Probe(ctx context.Context, f core.Formula, name string) (float64, error) {
	g, ok := f.(*Goal)
	if !ok {
		return 0, fmt.Errorf("mock solver: unsupported formula %T", f)
	}
	return g.Features[name], nil
}

func (s *Solver) Probes() []string {
	return slices.Clone(s.probes)
}

// Corpus is an in-memory core.InstanceSource.
type Corpus struct {
	mu    sync.RWMutex
	goals map[string]*Goal
	bad   map[string]bool
}

func NewCorpus() *Corpus {
	return &Corpus{goals: make(map[string]*Goal), bad: make(map[string]bool)}
}

// Add registers a problem under name.
func (c *Corpus) Add(name string, features map[string]float64) *Corpus {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.goals[name] = NewGoal(name, features)
	return c
}

// AddBroken registers a name whose load fails with a parse error.
func (c *Corpus) AddBroken(name string) *Corpus {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bad[name] = true
	return c
}

// Names returns every registered name, sorted.
func (c *Corpus) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := slices.Collect(maps.Keys(c.goals))
	for n := range c.bad {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *Corpus) Load(ctx context.Context, name string) (core.Formula, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.bad[name] {
		return nil, fmt.Errorf("parse %s: malformed input", name)
	}
	g, ok := c.goals[name]
	if !ok {
		return nil, fmt.Errorf("parse %s: no such instance", name)
	}
	return NewGoal(g.Problem, g.Features), nil
}
