// Package synth builds decision trees over candidate tactic sequences.
package synth

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"

	"github.com/snow-ghost/combiner/core"
	"github.com/snow-ghost/combiner/costcache"
	"github.com/snow-ghost/combiner/pkg/metrics"
	"github.com/snow-ghost/combiner/pkg/tracing"
	"github.com/snow-ghost/combiner/probe"
	"github.com/snow-ghost/combiner/strategy"
	"go.opentelemetry.io/otel/attribute"
)

// ErrNoCandidates is returned when synthesis starts without sequences.
var ErrNoCandidates = errors.New("no candidate sequences")

const (
	// DefaultMinDataLen is the dataset size below which no branching is tried.
	DefaultMinDataLen = 10

	// noCandidateCost is reported by FindMinTactic without candidates.
	noCandidateCost = 1e20
	// emptySideCost is reported by FindMinTactic for an empty dataset.
	emptySideCost = 1e19
)

// Synthesizer induces a strategy tree from a sealed cost cache.
type Synthesizer struct {
	Runner *Runner
	Cache  *costcache.Cache
	Meter  *probe.Meter
	// MinDataLen is the small-sample floor.
	MinDataLen     int
	ThresholdCount int
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

func (s *Synthesizer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Synthesizer) minDataLen() int {
	if s.MinDataLen > 0 {
		return s.MinDataLen
	}
	return DefaultMinDataLen
}

// Synthesize builds a tree for instances. seqs[i] must be the sequence
// sealed at index i of the cache.
func (s *Synthesizer) Synthesize(ctx context.Context, instances []core.Instance, seqs []strategy.Sequence) (strategy.Node, error) {
	if len(seqs) == 0 {
		return nil, ErrNoCandidates
	}
	for _, seq := range seqs {
		if len(seq) == 0 {
			return nil, core.ErrEmptySequence
		}
	}
	return s.node(ctx, instances, Candidates(seqs), 0)
}

// split is one scored predicate.
type split struct {
	cond     strategy.Condition
	is, not  []core.Instance
	cost     float64
	tIs      strategy.Tactic
	tNot     strategy.Tactic
	combined float64
}

func (s *Synthesizer) node(ctx context.Context, data []core.Instance, cands []Candidate, depth int) (strategy.Node, error) {
	ctx, span := tracing.Start(ctx, "synth.node",
		attribute.Int("depth", depth),
		attribute.Int("instances", len(data)),
		attribute.Int("candidates", len(cands)),
	)
	defer span.End()

	if len(data) < s.minDataLen() {
		leaf, err := s.BestSequence(ctx, data, cands)
		if err != nil {
			tracing.RecordSpanError(span, err)
			return nil, err
		}
		s.Metrics.RecordNode("floor")
		s.logger().DebugContext(ctx, "small sample leaf", "depth", depth, "instances", len(data), "leaf", leaf.String())
		return leaf.Node(), nil
	}

	prefix, cands := ExtractPrefix(cands)
	data, err := s.Runner.Forward(ctx, data, prefix)
	if err != nil {
		return nil, err
	}

	for {
		if len(cands) == 0 {
			return s.prefixOnly(prefix), nil
		}
		bank, err := probe.Generate(ctx, s.Meter, data, s.ThresholdCount)
		if err != nil {
			return nil, err
		}
		best, err := s.bestSplit(ctx, data, cands, bank)
		if err != nil {
			return nil, err
		}

		if best == nil {
			// no predicate separates the data
			s.logger().DebugContext(ctx, "no usable split", "depth", depth, "predicates", bank.Len())
			if len(prefix) > 0 {
				return s.prefixOnly(prefix), nil
			}
			_, _, i := s.FindMinTactic(data, cands)
			s.Metrics.RecordNode("leaf")
			return cands[i].Tactics.Node(), nil
		}

		if !best.tIs.Equal(best.tNot) {
			s.logger().DebugContext(ctx, "branching",
				"depth", depth,
				"condition", best.cond.String(),
				"is", len(best.is),
				"not", len(best.not),
				"t_is", best.tIs.String(),
				"t_not", best.tNot.String(),
			)
			then, err := s.node(ctx, best.is, StartingWith(cands, best.tIs), depth+1)
			if err != nil {
				return nil, err
			}
			els, err := s.node(ctx, best.not, StartingWith(cands, best.tNot), depth+1)
			if err != nil {
				return nil, err
			}
			s.Metrics.RecordNode("cond")
			return strategy.Then(prefix, strategy.Cond{If: best.cond, Then: then, Else: els}), nil
		}

		// both sides agree on the next tactic: it belongs to the prefix
		t := best.tIs
		s.logger().DebugContext(ctx, "folding tactic into prefix", "depth", depth, "tactic", t.String())
		prefix = append(prefix, t)
		if data, err = s.Runner.Forward(ctx, data, strategy.Sequence{t}); err != nil {
			return nil, err
		}
		more, rest := ExtractPrefix(Shorten(cands, t))
		cands = rest
		if len(more) > 0 {
			prefix = append(prefix, more...)
			if data, err = s.Runner.Forward(ctx, data, more); err != nil {
				return nil, err
			}
		}
	}
}

func (s *Synthesizer) prefixOnly(prefix strategy.Sequence) strategy.Node {
	s.Metrics.RecordNode("prefix")
	return prefix.Node()
}

// bestSplit tries every predicate whose split leaves both sides non-empty,
// in ascending concentration cost, and keeps the one whose sides have the
// lowest size-weighted find-min cost. Ties keep the earlier predicate.
func (s *Synthesizer) bestSplit(ctx context.Context, data []core.Instance, cands []Candidate, bank probe.Bank) (*split, error) {
	var tried []*split
	for _, c := range bank.Conditions() {
		is, not, err := probe.Split(ctx, s.Meter, c, data)
		if err != nil {
			return nil, err
		}
		cost := s.ConcentrationCost(is, not, cands)
		if math.IsInf(cost, 1) {
			continue
		}
		tried = append(tried, &split{cond: c, is: is, not: not, cost: cost})
	}
	sort.SliceStable(tried, func(i, j int) bool { return tried[i].cost < tried[j].cost })

	var best *split
	total := float64(len(data))
	for _, sp := range tried {
		scIs, tIs, _ := s.FindMinTactic(sp.is, cands)
		scNot, tNot, _ := s.FindMinTactic(sp.not, cands)
		sp.tIs, sp.tNot = tIs, tNot
		sp.combined = float64(len(sp.is))/total*scIs + float64(len(sp.not))/total*scNot
		if best == nil || sp.combined < best.combined {
			best = sp
		}
	}
	return best, nil
}

// ConcentrationCost scores a split by how consistently each candidate
// solves each side: the negated sum of binary entropies of the solved
// fractions, weighted by side size. Lower is more decisive. A split with an
// empty side costs +Inf.
func (s *Synthesizer) ConcentrationCost(is, not []core.Instance, cands []Candidate) float64 {
	if len(is) == 0 || len(not) == 0 {
		return math.Inf(1)
	}
	total := float64(len(is) + len(not))
	return float64(len(is))/total*s.entropy(is, cands) + float64(len(not))/total*s.entropy(not, cands)
}

func (s *Synthesizer) entropy(side []core.Instance, cands []Candidate) float64 {
	sum := 0.0
	for _, c := range cands {
		solved := 0
		for _, inst := range side {
			if s.Cache.Solved(c.Index, inst.Name) {
				solved++
			}
		}
		r := float64(solved) / float64(len(side))
		// keep r off 0 and 1
		if r > 0.5 {
			r -= 0.001
		} else {
			r += 0.001
		}
		sum += r*math.Log(r) + (1-r)*math.Log(1-r)
	}
	return -sum
}

// FindMinTactic returns the lowest average cached cost of running a
// candidate's remaining tactics over data, that candidate's first tactic,
// and its position in cands. Earlier candidates win ties. With no data the
// first candidate is returned at a sentinel cost; with no candidates the
// position is -1.
func (s *Synthesizer) FindMinTactic(data []core.Instance, cands []Candidate) (float64, strategy.Tactic, int) {
	if len(cands) == 0 {
		return noCandidateCost, strategy.Tactic{}, -1
	}
	if len(data) == 0 {
		return emptySideCost, cands[0].Tactics[0], 0
	}
	bestCost, bestIdx := math.Inf(1), 0
	for i, c := range cands {
		tot := 0.0
		for _, inst := range data {
			tot += s.Cache.SuffixCost(c.Index, inst.Name, len(c.Tactics))
		}
		if avg := tot / float64(len(data)); avg < bestCost {
			bestCost, bestIdx = avg, i
		}
	}
	return bestCost, cands[bestIdx].Tactics[0], bestIdx
}

// BestSequence runs every candidate directly on data and returns the one
// with the lowest (unsolved, cost, index).
func (s *Synthesizer) BestSequence(ctx context.Context, data []core.Instance, cands []Candidate) (strategy.Sequence, error) {
	if len(cands) == 0 {
		return nil, ErrNoCandidates
	}
	var (
		best  core.Score
		found strategy.Sequence
	)
	for _, c := range cands {
		unsolved, cost, err := s.Runner.SolveDataset(ctx, data, c.Tactics)
		if err != nil {
			return nil, err
		}
		sc := core.Score{Unsolved: unsolved, Cost: cost, Index: c.Index}
		if found == nil || sc.Less(best) {
			best, found = sc, c.Tactics
		}
	}
	return found, nil
}
