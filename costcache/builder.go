package costcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/snow-ghost/combiner/core"
	"github.com/snow-ghost/combiner/pkg/metrics"
	"github.com/snow-ghost/combiner/pkg/tracing"
	"github.com/snow-ghost/combiner/strategy"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Builder runs every candidate sequence against the corpus and seals one
// journal section per sequence. Sections already in the journal are reused.
type Builder struct {
	Solver  core.Solver
	Journal Journal
	Mode    Mode
	Budget  core.Budget
	// Penalty is charged for a crashed solver call and for absent entries.
	Penalty float64
	// Workers bounds the concurrent solver calls within a section.
	Workers int
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// Build returns the sealed cache for seqs over instances. Index i of the
// cache is seqs[i]. A journal holding a prefix of the expected sections is
// resumed; one that holds more sections, gaps, or sections computed for
// other inputs is reset and rebuilt from empty.
func (b *Builder) Build(ctx context.Context, instances []core.Instance, seqs []strategy.Sequence) (*Cache, error) {
	for i, seq := range seqs {
		if len(seq) == 0 {
			return nil, fmt.Errorf("sequence %d: %w", i, core.ErrEmptySequence)
		}
	}
	names := core.Names(instances)
	fingerprints := make([]string, len(seqs))
	for i, seq := range seqs {
		fingerprints[i] = Fingerprint(b.Mode, seq, names)
	}

	sections, err := b.resume(ctx, fingerprints)
	if err != nil {
		return nil, err
	}
	for range sections {
		b.Metrics.RecordSection(true)
	}
	if len(sections) > 0 {
		b.logger().InfoContext(ctx, "resumed cost cache", "sealed", len(sections), "total", len(seqs))
	}

	for i := len(sections); i < len(seqs); i++ {
		s, err := b.seal(ctx, i, seqs[i], fingerprints[i], instances)
		if err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}
	return New(b.Mode, b.Penalty, sections), nil
}

// resume loads the journal and keeps it only if it is a valid prefix.
func (b *Builder) resume(ctx context.Context, fingerprints []string) ([]Section, error) {
	sections, err := b.Journal.Load(ctx)
	if err == nil {
		err = validate(sections, fingerprints, b.Mode)
	}
	if err == nil {
		return sections, nil
	}
	if !errors.Is(err, ErrStaleJournal) {
		return nil, fmt.Errorf("load journal: %w", err)
	}
	b.logger().WarnContext(ctx, "discarding cost cache journal", "error", err)
	b.Metrics.RecordJournalReset()
	if err := b.Journal.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset journal: %w", err)
	}
	return nil, nil
}

func validate(sections []Section, fingerprints []string, mode Mode) error {
	if len(sections) > len(fingerprints) {
		return fmt.Errorf("%w: %d sections for %d sequences", ErrStaleJournal, len(sections), len(fingerprints))
	}
	for i, s := range sections {
		switch {
		case s.Index != i:
			return fmt.Errorf("%w: record %d carries index %d", ErrStaleJournal, i, s.Index)
		case s.Mode != mode:
			return fmt.Errorf("%w: section %d built in %s mode", ErrStaleJournal, i, s.Mode)
		case s.Fingerprint != fingerprints[i]:
			return fmt.Errorf("%w: section %d fingerprint mismatch", ErrStaleJournal, i)
		}
	}
	return nil
}

// seal evaluates one sequence across the corpus and appends its section.
// Each worker writes a distinct key, and a failing instance never blocks
// the others.
func (b *Builder) seal(ctx context.Context, idx int, seq strategy.Sequence, fingerprint string, instances []core.Instance) (Section, error) {
	ctx, span := tracing.Start(ctx, "costcache.seal",
		attribute.Int("sequence.index", idx),
		attribute.String("sequence", seq.String()),
	)
	defer span.End()
	start := time.Now()

	var (
		mu      sync.Mutex
		entries = make(map[string][]float64)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, b.Workers))
	for _, inst := range instances {
		g.Go(func() error {
			v, ok, err := b.measure(gctx, inst, seq)
			if err != nil || !ok {
				return err
			}
			mu.Lock()
			entries[inst.Name] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		tracing.RecordSpanError(span, err)
		return Section{}, err
	}

	s := Section{Index: idx, Sequence: seq.String(), Mode: b.Mode, Fingerprint: fingerprint, Entries: entries}
	if err := b.Journal.Append(ctx, s); err != nil {
		tracing.RecordSpanError(span, err)
		return Section{}, fmt.Errorf("seal section %d: %w", idx, err)
	}
	b.Metrics.RecordSection(false)
	b.logger().InfoContext(ctx, "sealed cost cache section",
		"index", idx,
		"sequence", s.Sequence,
		"solved", len(entries),
		"instances", len(instances),
		"duration", time.Since(start),
	)
	return s, nil
}

func (b *Builder) measure(ctx context.Context, inst core.Instance, seq strategy.Sequence) ([]float64, bool, error) {
	if b.Mode == ModeQuick {
		out, err := b.apply(ctx, inst.Formula, seq.Node())
		if err != nil || !out.Result.Definite() {
			return nil, false, err
		}
		return []float64{out.Cost}, true, nil
	}
	return b.measureSuffix(ctx, inst.Formula, seq)
}

// measureSuffix applies seq one tactic at a time and turns the step costs
// into v where v[j] is the cost of tactics j..k-1 and v[k] is 0. Steps after
// a definite result are not run and cost nothing. A crash ends the sequence
// with no entry.
func (b *Builder) measureSuffix(ctx context.Context, f core.Formula, seq strategy.Sequence) ([]float64, bool, error) {
	steps := make([]float64, len(seq))
	result := core.ResultUnknown
	for j, t := range seq {
		out, err := b.apply(ctx, f, t)
		if err != nil {
			return nil, false, err
		}
		steps[j] = out.Cost
		result = out.Result
		if result.Definite() {
			break
		}
		if out.Next == nil {
			return nil, false, nil
		}
		f = out.Next
	}
	if !result.Definite() {
		return nil, false, nil
	}
	v := make([]float64, len(seq)+1)
	for j := len(seq) - 1; j >= 0; j-- {
		v[j] = v[j+1] + steps[j]
	}
	return v, true, nil
}

func (b *Builder) apply(ctx context.Context, f core.Formula, n strategy.Node) (core.Outcome, error) {
	start := time.Now()
	out, err := core.Attempt(ctx, b.Solver, f, n, b.Budget, b.Penalty)
	if err != nil {
		return core.Outcome{}, err
	}
	b.Metrics.RecordSolverCall("cache", out.Result.String(), time.Since(start))
	return out, nil
}
