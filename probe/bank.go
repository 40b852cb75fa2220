package probe

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"sort"

	"github.com/snow-ghost/combiner/core"
	"github.com/snow-ghost/combiner/strategy"
)

// DefaultThresholdCount is the number of order-statistic thresholds drawn
// per probe.
const DefaultThresholdCount = 16

// Bank is an immutable set of candidate predicates valid for one dataset.
// A bank computed for a dataset must not be used on a narrowed subset.
type Bank struct {
	conds []strategy.Condition
}

// NewBank snapshots conds.
func NewBank(conds ...strategy.Condition) Bank {
	return Bank{conds: slices.Clone(conds)}
}

func (b Bank) Len() int { return len(b.conds) }

// At returns the i-th predicate.
func (b Bank) At(i int) strategy.Condition { return b.conds[i] }

// Conditions returns a copy of the predicates in generation order.
func (b Bank) Conditions() []strategy.Condition { return slices.Clone(b.conds) }

// Generate measures every probe on every instance and derives predicates
// from the distinct values. Probes with at most one distinct value are
// skipped. With n distinct values and step = n/count, a positive step yields
// count thresholds at the sorted positions 0, step, 2*step and so on,
// truncated toward zero; every kept probe also gets the midpoint of its
// range. A probe that fails on an instance contributes no value for it.
func Generate(ctx context.Context, m *Meter, instances []core.Instance, count int) (Bank, error) {
	if count <= 0 {
		count = DefaultThresholdCount
	}
	probes := m.Probes()
	sort.Strings(probes)

	var conds []strategy.Condition
	for _, name := range probes {
		seen := make(map[float64]struct{})
		for _, inst := range instances {
			v, err := m.Value(ctx, inst.Formula, name)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return Bank{}, ctxErr
				}
				slog.DebugContext(ctx, "probe failed", "probe", name, "instance", inst.Name, "error", err)
				continue
			}
			if math.IsNaN(v) {
				continue
			}
			seen[v] = struct{}{}
		}
		if len(seen) <= 1 {
			continue
		}
		values := make([]float64, 0, len(seen))
		for v := range seen {
			values = append(values, v)
		}
		sort.Float64s(values)

		var thresholds []float64
		if step := len(values) / count; step > 0 {
			for i := 0; i < count; i++ {
				thresholds = append(thresholds, math.Trunc(values[step*i]))
			}
		}
		thresholds = append(thresholds, (values[0]+values[len(values)-1])/2)

		added := make(map[float64]bool, len(thresholds))
		for _, t := range thresholds {
			if added[t] {
				continue
			}
			added[t] = true
			conds = append(conds, strategy.Condition{Probe: name, Threshold: t})
		}
	}
	return Bank{conds: conds}, nil
}

// Split partitions instances by c, preserving order. An instance whose
// probe cannot be evaluated goes to the not side.
func Split(ctx context.Context, m *Meter, c strategy.Condition, instances []core.Instance) (is, not []core.Instance, err error) {
	for _, inst := range instances {
		ok, err := m.Holds(ctx, c, inst.Formula)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}
			ok = false
		}
		if ok {
			is = append(is, inst)
		} else {
			not = append(not, inst)
		}
	}
	return is, not, nil
}
