package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptySequence is returned when a candidate sequence has no tactics.
var ErrEmptySequence = errors.New("empty tactic sequence")

// ErrUnavailable marks solver errors that say nothing about the formula,
// such as a tripped circuit breaker. They abort the run instead of being
// recorded as an outcome.
var ErrUnavailable = errors.New("solver unavailable")

// Budget bounds a single solver call.
type Budget struct {
	RLimit  int64         // resource-limit counter handed to the solver, 0 means none
	Timeout time.Duration // wall-clock limit enforced around the call
}

// Result is the tri-state outcome of a solver call.
type Result int

const (
	ResultUnknown Result = iota
	ResultSat
	ResultUnsat
)

// Definite reports whether the instance was decided.
func (r Result) Definite() bool {
	return r == ResultSat || r == ResultUnsat
}

func (r Result) String() string {
	switch r {
	case ResultSat:
		return "sat"
	case ResultUnsat:
		return "unsat"
	default:
		return "unknown"
	}
}

func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Result) UnmarshalText(text []byte) error {
	switch string(text) {
	case "sat":
		*r = ResultSat
	case "unsat":
		*r = ResultUnsat
	case "unknown", "":
		*r = ResultUnknown
	default:
		return fmt.Errorf("unknown result %q", text)
	}
	return nil
}

// Formula is a parsed problem instance owned by the solver collaborator.
type Formula interface {
	// Canonical renders the formula structurally: equal strings mean the
	// formulas are identical.
	Canonical() string
}

// Instance pairs a stable corpus name with its current formula. Applying a
// tactic never mutates an Instance; it yields a new one under the same name.
type Instance struct {
	Name    string
	Formula Formula
}

// WithFormula returns a copy of the instance carrying f.
func (i Instance) WithFormula(f Formula) Instance {
	return Instance{Name: i.Name, Formula: f}
}

// Names returns the instance names in order.
func Names(instances []Instance) []string {
	out := make([]string, len(instances))
	for i, inst := range instances {
		out[i] = inst.Name
	}
	return out
}

// Outcome is what one solver application produced.
type Outcome struct {
	Result Result
	Cost   float64 // resource delta consumed by the call
	Next   Formula // transformed formula, nil when the call failed
}
