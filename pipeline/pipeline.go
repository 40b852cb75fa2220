// Package pipeline wires corpus loading, cost cache construction and
// synthesis into runs.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/snow-ghost/combiner/core"
	"github.com/snow-ghost/combiner/corpus"
	"github.com/snow-ghost/combiner/costcache"
	"github.com/snow-ghost/combiner/evaluate"
	"github.com/snow-ghost/combiner/pkg/config"
	"github.com/snow-ghost/combiner/pkg/logging"
	"github.com/snow-ghost/combiner/pkg/metrics"
	"github.com/snow-ghost/combiner/pkg/tracing"
	"github.com/snow-ghost/combiner/probe"
	"github.com/snow-ghost/combiner/strategy"
	"github.com/snow-ghost/combiner/synth"
	"go.opentelemetry.io/otel/attribute"
)

// Pipeline runs synthesis jobs against one solver and journal.
type Pipeline struct {
	Config  *config.Config
	Solver  core.Solver
	Source  core.InstanceSource
	Journal costcache.Journal
	Metrics *metrics.Metrics
	Logger  *logging.Logger
}

// Result describes a finished synthesis run.
type Result struct {
	RunID      string
	Tree       strategy.Node
	Instances  int
	Excluded   int
	Candidates int
	Depth      int
	Duration   time.Duration
}

func (p *Pipeline) logger() *logging.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return logging.NewNop()
}

func (p *Pipeline) budget() core.Budget {
	return core.Budget{Timeout: p.Config.Budget.Timeout, RLimit: p.Config.Budget.RLimit}
}

// Load materializes names, excluding instances that fail to parse.
func (p *Pipeline) Load(ctx context.Context, names []string) ([]core.Instance, error) {
	store, err := corpus.NewStore(p.Source, p.Config.Memo.Formulas, p.logger().GetSlog())
	if err != nil {
		return nil, err
	}
	return store.LoadAll(ctx, names)
}

// BuildCache seals the cost cache for seqs over instances.
func (p *Pipeline) BuildCache(ctx context.Context, instances []core.Instance, seqs []strategy.Sequence) (*costcache.Cache, error) {
	b := &costcache.Builder{
		Solver:  p.Solver,
		Journal: p.Journal,
		Mode:    Mode(p.Config),
		Budget:  p.budget(),
		Penalty: p.Config.Penalty(),
		Workers: p.Config.Workers,
		Metrics: p.Metrics,
		Logger:  p.logger().GetSlog(),
	}
	return b.Build(ctx, instances, seqs)
}

// NewMeter returns a probe meter over the pipeline's solver.
func (p *Pipeline) NewMeter() (*probe.Meter, error) {
	return probe.NewMeter(p.Solver, p.Config.Memo.Probes, p.Metrics)
}

// Synthesize loads names, builds or resumes the cost cache and synthesizes
// a strategy tree.
func (p *Pipeline) Synthesize(ctx context.Context, names []string, seqs []strategy.Sequence) (*Result, error) {
	runID := uuid.NewString()
	log := p.logger().WithRunID(runID)
	start := time.Now()

	ctx, span := tracing.Start(ctx, "pipeline.synthesize",
		attribute.String("run_id", runID),
		attribute.Int("instances", len(names)),
		attribute.Int("candidates", len(seqs)),
	)
	defer span.End()

	instances, err := p.Load(ctx, names)
	if err != nil {
		tracing.RecordSpanError(span, err)
		return nil, err
	}
	log.Info("corpus loaded", "instances", len(instances), "excluded", len(names)-len(instances))

	cache, err := p.BuildCache(ctx, instances, seqs)
	if err != nil {
		tracing.RecordSpanError(span, err)
		return nil, fmt.Errorf("build cost cache: %w", err)
	}
	meter, err := p.NewMeter()
	if err != nil {
		return nil, err
	}

	s := &synth.Synthesizer{
		Runner: &synth.Runner{
			Solver:  p.Solver,
			Budget:  p.budget(),
			Penalty: p.Config.Penalty(),
			Workers: p.Config.Workers,
			Metrics: p.Metrics,
		},
		Cache:          cache,
		Meter:          meter,
		MinDataLen:     p.Config.MinDataLen,
		ThresholdCount: p.Config.ThresholdCount,
		Metrics:        p.Metrics,
		Logger:         log.GetSlog(),
	}
	tree, err := s.Synthesize(ctx, instances, seqs)
	if err != nil {
		tracing.RecordSpanError(span, err)
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	res := &Result{
		RunID:      runID,
		Tree:       tree,
		Instances:  len(instances),
		Excluded:   len(names) - len(instances),
		Candidates: len(seqs),
		Depth:      strategy.Depth(tree),
		Duration:   time.Since(start),
	}
	log.LogSynthesis(res.Instances, res.Candidates, res.Depth, res.Duration, tree.String())
	return res, nil
}

// Evaluate runs tree and the candidates over names.
func (p *Pipeline) Evaluate(ctx context.Context, tree strategy.Node, names []string, seqs []strategy.Sequence) (*evaluate.Report, error) {
	ctx, span := tracing.Start(ctx, "pipeline.evaluate", attribute.Int("instances", len(names)))
	defer span.End()

	instances, err := p.Load(ctx, names)
	if err != nil {
		return nil, err
	}
	meter, err := p.NewMeter()
	if err != nil {
		return nil, err
	}
	e := &evaluate.Evaluator{
		Solver:  p.Solver,
		Meter:   meter,
		Budget:  p.budget(),
		Penalty: p.Config.Penalty(),
		Workers: p.Config.Workers,
	}
	rep, err := e.Evaluate(ctx, tree, instances, seqs)
	if err != nil {
		tracing.RecordSpanError(span, err)
		return nil, err
	}
	p.logger().LogEvaluation("strategy", rep.Strategy.Solved, rep.Strategy.Unsolved, rep.Strategy.Cost)
	return rep, nil
}
