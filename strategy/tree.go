package strategy

import (
	"math"
	"strconv"
	"strings"
)

// Condition is a probe predicate: it holds when probe(instance) > Threshold.
type Condition struct {
	Probe     string
	Threshold float64
}

// Holds evaluates the predicate against a measured probe value.
func (c Condition) Holds(value float64) bool {
	return value > c.Threshold
}

func (c Condition) String() string {
	return c.Probe + " > " + formatFloat(c.Threshold)
}

// SMT2 renders the predicate with the threshold rounded to the nearest integer.
func (c Condition) SMT2() string {
	return "(> " + c.Probe + " " + strconv.FormatInt(int64(math.Floor(c.Threshold+0.5)), 10) + ")"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// AndThen applies its steps in order.
type AndThen struct {
	Steps []Node
}

func (a AndThen) Kind() Kind { return KindSequential }

func (a AndThen) sealed() {}

func (a AndThen) String() string {
	parts := make([]string, len(a.Steps))
	for i, s := range a.Steps {
		parts[i] = s.String()
	}
	return "AndThen(" + strings.Join(parts, ",") + ")"
}

func (a AndThen) SMT2() string {
	parts := make([]string, len(a.Steps))
	for i, s := range a.Steps {
		parts[i] = s.SMT2()
	}
	return "(then " + strings.Join(parts, " ") + ")"
}

// Cond routes to Then when If holds on the current instance, Else otherwise.
type Cond struct {
	If   Condition
	Then Node
	Else Node
}

func (c Cond) Kind() Kind { return KindConditional }

func (c Cond) sealed() {}

func (c Cond) String() string {
	return "Cond(" + c.If.String() + "," + c.Then.String() + "," + c.Else.String() + ")"
}

func (c Cond) SMT2() string {
	return "(if " + c.If.SMT2() + " " + c.Then.SMT2() + " " + c.Else.SMT2() + ")"
}

// Then composes a hoisted prefix with the tree that follows it. Nested
// sequences are flattened so that equal trees share one canonical form.
func Then(prefix Sequence, rest Node) Node {
	steps := make([]Node, 0, len(prefix)+1)
	for _, t := range prefix {
		steps = append(steps, t)
	}
	if rest != nil {
		if seq, ok := rest.(AndThen); ok {
			steps = append(steps, seq.Steps...)
		} else {
			steps = append(steps, rest)
		}
	}
	switch len(steps) {
	case 0:
		return nil
	case 1:
		return steps[0]
	}
	return AndThen{Steps: steps}
}

// Equal compares two trees by canonical form.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String()
}

// Depth returns the number of Cond nodes on the longest root-to-leaf path.
func Depth(n Node) int {
	switch v := n.(type) {
	case Tactic:
		return 0
	case AndThen:
		d := 0
		for _, s := range v.Steps {
			d = max(d, Depth(s))
		}
		return d
	case Cond:
		return 1 + max(Depth(v.Then), Depth(v.Else))
	default:
		return 0
	}
}

// Tactics returns the distinct tactics of a tree in first-seen order.
func Tactics(n Node) []Tactic {
	seen := make(map[string]bool)
	var out []Tactic
	var walk func(Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case Tactic:
			if key := v.String(); !seen[key] {
				seen[key] = true
				out = append(out, v)
			}
		case AndThen:
			for _, s := range v.Steps {
				walk(s)
			}
		case Cond:
			walk(v.Then)
			walk(v.Else)
		}
	}
	walk(n)
	return out
}

// Flatten returns the tactics of a tree that contains no Cond node.
// ok is false when a conditional is present.
func Flatten(n Node) (seq Sequence, ok bool) {
	switch v := n.(type) {
	case Tactic:
		return Sequence{v}, true
	case AndThen:
		for _, s := range v.Steps {
			sub, ok := Flatten(s)
			if !ok {
				return nil, false
			}
			seq = append(seq, sub...)
		}
		return seq, true
	default:
		return nil, false
	}
}
