package synth

import (
	"github.com/snow-ghost/combiner/strategy"
)

// Candidate is a residual tactic sequence tagged with the cache index of the
// sequence it came from.
type Candidate struct {
	Index   int
	Tactics strategy.Sequence
}

// Candidates tags seqs with their positions.
func Candidates(seqs []strategy.Sequence) []Candidate {
	out := make([]Candidate, len(seqs))
	for i, s := range seqs {
		out[i] = Candidate{Index: i, Tactics: s}
	}
	return out
}

// ExtractPrefix returns the longest run of tactics every candidate starts
// with, and the candidates with that run stripped. Candidates left empty
// are dropped.
func ExtractPrefix(cands []Candidate) (strategy.Sequence, []Candidate) {
	if len(cands) == 0 {
		return nil, nil
	}
	n := 0
outer:
	for ; ; n++ {
		for _, c := range cands {
			if n >= len(c.Tactics) || !c.Tactics[n].Equal(cands[0].Tactics[n]) {
				break outer
			}
		}
	}
	prefix := cands[0].Tactics[:n].Clone()
	return prefix, strip(cands, n)
}

func strip(cands []Candidate, n int) []Candidate {
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if len(c.Tactics) > n {
			out = append(out, Candidate{Index: c.Index, Tactics: c.Tactics[n:]})
		}
	}
	return out
}

// StartingWith keeps the candidates whose first tactic is t.
func StartingWith(cands []Candidate, t strategy.Tactic) []Candidate {
	var out []Candidate
	for _, c := range cands {
		if len(c.Tactics) > 0 && c.Tactics[0].Equal(t) {
			out = append(out, c)
		}
	}
	return out
}

// Shorten keeps the candidates starting with t and strips t from them.
func Shorten(cands []Candidate, t strategy.Tactic) []Candidate {
	return strip(StartingWith(cands, t), 1)
}
