package strategy

import (
	"sort"
	"strings"
)

// Kind tags the variant a Node belongs to.
type Kind int

const (
	KindAtomic Kind = iota
	KindParameterized
	KindSequential
	KindConditional
)

func (k Kind) String() string {
	switch k {
	case KindAtomic:
		return "atomic"
	case KindParameterized:
		return "parameterized"
	case KindSequential:
		return "sequential"
	case KindConditional:
		return "conditional"
	default:
		return "unknown"
	}
}

// Node is a strategy expression. The set of implementations is closed:
// Tactic, AndThen and Cond.
type Node interface {
	Kind() Kind
	// String returns the canonical form accepted by Parse.
	String() string
	// SMT2 renders the node as an SMT-LIB2 strategy expression.
	SMT2() string
	sealed()
}

// Tactic is an atomic named transformation, optionally parameterized.
type Tactic struct {
	Name   string
	Params map[string]string
}

// Atomic returns a tactic without parameters.
func Atomic(name string) Tactic {
	return Tactic{Name: name}
}

// With returns a parameterized tactic.
func With(name string, params map[string]string) Tactic {
	cp := make(map[string]string, len(params))
	for k, v := range params {
		cp[k] = v
	}
	return Tactic{Name: name, Params: cp}
}

func (t Tactic) Kind() Kind {
	if len(t.Params) == 0 {
		return KindAtomic
	}
	return KindParameterized
}

func (t Tactic) sealed() {}

// paramKeys returns parameter names in canonical order.
func (t Tactic) paramKeys() []string {
	keys := make([]string, 0, len(t.Params))
	for k := range t.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders Tactic(name) or With(name;k=v;...) with sorted keys.
// Two tactics are equal iff their strings are equal.
func (t Tactic) String() string {
	if len(t.Params) == 0 {
		return "Tactic(" + t.Name + ")"
	}
	var b strings.Builder
	b.WriteString("With(")
	b.WriteString(t.Name)
	for _, k := range t.paramKeys() {
		b.WriteByte(';')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(t.Params[k])
	}
	b.WriteByte(')')
	return b.String()
}

func (t Tactic) SMT2() string {
	if len(t.Params) == 0 {
		return t.Name
	}
	var b strings.Builder
	b.WriteString("(using-params ")
	b.WriteString(t.Name)
	for _, k := range t.paramKeys() {
		b.WriteString(" :")
		b.WriteString(k)
		b.WriteByte(' ')
		b.WriteString(t.Params[k])
	}
	b.WriteByte(')')
	return b.String()
}

// Equal reports whether both tactics share a canonical form.
func (t Tactic) Equal(o Tactic) bool {
	return t.String() == o.String()
}

// Sequence is an ordered list of tactics applied one after another.
type Sequence []Tactic

// Node returns the sequence as an expression: the lone tactic for a
// one-element sequence, AndThen otherwise. Empty sequences yield nil.
func (s Sequence) Node() Node {
	switch len(s) {
	case 0:
		return nil
	case 1:
		return s[0]
	}
	steps := make([]Node, len(s))
	for i, t := range s {
		steps[i] = t
	}
	return AndThen{Steps: steps}
}

func (s Sequence) String() string {
	if n := s.Node(); n != nil {
		return n.String()
	}
	return ""
}

// HasPrefix reports whether s starts with every tactic of p.
func (s Sequence) HasPrefix(p Sequence) bool {
	if len(p) > len(s) {
		return false
	}
	for i := range p {
		if !s[i].Equal(p[i]) {
			return false
		}
	}
	return true
}

// Clone returns a copy that shares no backing array with s.
func (s Sequence) Clone() Sequence {
	out := make(Sequence, len(s))
	copy(out, s)
	return out
}
