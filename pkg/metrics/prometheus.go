package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors of a synthesis run
type Metrics struct {
	registry *prometheus.Registry

	// Solver metrics
	SolverCalls   *prometheus.CounterVec
	SolverLatency *prometheus.HistogramVec

	// Cost cache metrics
	SectionsSealed prometheus.Counter
	SectionsLoaded prometheus.Counter
	JournalResets  prometheus.Counter

	// Probe memo metrics
	ProbeMemoHits   prometheus.Counter
	ProbeMemoMisses prometheus.Counter

	// Synthesizer metrics
	Nodes *prometheus.CounterVec

	// Limiter metrics
	BreakerTransitions *prometheus.CounterVec
}

// New creates a metrics set on its own registry, so several runs can coexist
// in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SolverCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "combiner_solver_calls_total",
				Help: "Total number of solver applications",
			},
			[]string{"stage", "result"},
		),

		SolverLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "combiner_solver_call_seconds",
				Help:    "Wall-clock latency of solver applications",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),

		SectionsSealed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "combiner_cache_sections_sealed_total",
				Help: "Cost cache sections computed and appended to the journal",
			},
		),

		SectionsLoaded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "combiner_cache_sections_loaded_total",
				Help: "Cost cache sections recovered from the journal",
			},
		),

		JournalResets: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "combiner_cache_journal_resets_total",
				Help: "Stale journals discarded before a rebuild",
			},
		),

		ProbeMemoHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "combiner_probe_memo_hits_total",
				Help: "Probe measurements served from the memo",
			},
		),

		ProbeMemoMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "combiner_probe_memo_misses_total",
				Help: "Probe measurements sent to the solver",
			},
		),

		Nodes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "combiner_synth_nodes_total",
				Help: "Strategy tree nodes emitted by the synthesizer",
			},
			[]string{"kind"},
		),

		BreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "combiner_breaker_transitions_total",
				Help: "Solver circuit breaker state changes",
			},
			[]string{"to"},
		),
	}
}

// RecordSolverCall records one solver application
func (m *Metrics) RecordSolverCall(stage, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SolverCalls.WithLabelValues(stage, result).Inc()
	m.SolverLatency.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordSection records a cache section either sealed now or loaded from disk
func (m *Metrics) RecordSection(loaded bool) {
	if m == nil {
		return
	}
	if loaded {
		m.SectionsLoaded.Inc()
	} else {
		m.SectionsSealed.Inc()
	}
}

// RecordJournalReset records a discarded journal
func (m *Metrics) RecordJournalReset() {
	if m == nil {
		return
	}
	m.JournalResets.Inc()
}

// RecordProbeMemo records a probe memo lookup
func (m *Metrics) RecordProbeMemo(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.ProbeMemoHits.Inc()
	} else {
		m.ProbeMemoMisses.Inc()
	}
}

// RecordNode records an emitted tree node
func (m *Metrics) RecordNode(kind string) {
	if m == nil {
		return
	}
	m.Nodes.WithLabelValues(kind).Inc()
}

// RecordBreakerTransition records a circuit breaker state change
func (m *Metrics) RecordBreakerTransition(to string) {
	if m == nil {
		return
	}
	m.BreakerTransitions.WithLabelValues(to).Inc()
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
