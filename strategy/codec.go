package strategy

import (
	"encoding/json"
	"fmt"
)

// wireNode is the JSON envelope for every Node variant.
type wireNode struct {
	Kind      string            `json:"kind"`
	Name      string            `json:"name,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
	Steps     []wireNode        `json:"steps,omitempty"`
	Probe     string            `json:"probe,omitempty"`
	Threshold *float64          `json:"threshold,omitempty"`
	Then      *wireNode         `json:"then,omitempty"`
	Else      *wireNode         `json:"else,omitempty"`
}

const (
	wireTactic  = "tactic"
	wireAndThen = "and_then"
	wireCond    = "cond"
)

// Marshal encodes a tree as a JSON expression tree.
func Marshal(n Node) ([]byte, error) {
	w, err := toWire(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// MarshalIndent is Marshal with indentation, for files meant to be read.
func MarshalIndent(n Node) ([]byte, error) {
	w, err := toWire(n)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(w, "", "  ")
}

// Unmarshal decodes a tree produced by Marshal.
func Unmarshal(data []byte) (Node, error) {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode strategy: %w", err)
	}
	return fromWire(w)
}

func toWire(n Node) (wireNode, error) {
	switch v := n.(type) {
	case Tactic:
		return wireNode{Kind: wireTactic, Name: v.Name, Params: v.Params}, nil
	case AndThen:
		w := wireNode{Kind: wireAndThen, Steps: make([]wireNode, len(v.Steps))}
		for i, s := range v.Steps {
			sw, err := toWire(s)
			if err != nil {
				return wireNode{}, err
			}
			w.Steps[i] = sw
		}
		return w, nil
	case Cond:
		then, err := toWire(v.Then)
		if err != nil {
			return wireNode{}, err
		}
		els, err := toWire(v.Else)
		if err != nil {
			return wireNode{}, err
		}
		threshold := v.If.Threshold
		return wireNode{Kind: wireCond, Probe: v.If.Probe, Threshold: &threshold, Then: &then, Else: &els}, nil
	default:
		return wireNode{}, fmt.Errorf("encode strategy: unsupported node %T", n)
	}
}

func fromWire(w wireNode) (Node, error) {
	switch w.Kind {
	case wireTactic:
		if w.Name == "" {
			return nil, fmt.Errorf("%w: tactic without name", ErrSyntax)
		}
		if len(w.Params) == 0 {
			return Atomic(w.Name), nil
		}
		return With(w.Name, w.Params), nil
	case wireAndThen:
		if len(w.Steps) == 0 {
			return nil, fmt.Errorf("%w: empty and_then", ErrSyntax)
		}
		steps := make([]Node, len(w.Steps))
		for i, s := range w.Steps {
			n, err := fromWire(s)
			if err != nil {
				return nil, err
			}
			steps[i] = n
		}
		return AndThen{Steps: steps}, nil
	case wireCond:
		if w.Probe == "" || w.Threshold == nil || w.Then == nil || w.Else == nil {
			return nil, fmt.Errorf("%w: incomplete cond", ErrSyntax)
		}
		then, err := fromWire(*w.Then)
		if err != nil {
			return nil, err
		}
		els, err := fromWire(*w.Else)
		if err != nil {
			return nil, err
		}
		return Cond{If: Condition{Probe: w.Probe, Threshold: *w.Threshold}, Then: then, Else: els}, nil
	default:
		return nil, fmt.Errorf("%w: unknown node kind %q", ErrSyntax, w.Kind)
	}
}
