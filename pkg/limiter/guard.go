package limiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/snow-ghost/combiner/core"
	"github.com/snow-ghost/combiner/pkg/metrics"
	"github.com/snow-ghost/combiner/strategy"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker rejects solver calls. It wraps
// core.ErrUnavailable, so runs abort instead of caching the rejections.
var ErrCircuitOpen = fmt.Errorf("circuit breaker open: %w", core.ErrUnavailable)

// Config selects the protections applied around the solver
type Config struct {
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
	Breaker bool    `yaml:"breaker"`
}

// Guard is a core.Solver that throttles calls and, optionally, stops sending
// work to a solver that keeps crashing. Rejected calls surface as errors,
// which callers fold into unknown outcomes.
type Guard struct {
	inner   core.Solver
	rate    *RateLimiter
	breaker *gobreaker.CircuitBreaker
}

// NewGuard wraps inner according to cfg
func NewGuard(inner core.Solver, cfg Config, m *metrics.Metrics) *Guard {
	g := &Guard{inner: inner, rate: NewRateLimiter(cfg.RPS, cfg.Burst)}
	if cfg.Breaker {
		g.breaker = newBreaker(DefaultCircuitBreakerConfig("solver"), func(from, to gobreaker.State) {
			slog.Warn("solver circuit breaker changed state", "from", from.String(), "to", to.String())
			m.RecordBreakerTransition(to.String())
		})
	}
	return g
}

func (g *Guard) Apply(ctx context.Context, f core.Formula, tactic strategy.Node, b core.Budget) (core.Outcome, error) {
	if err := g.rate.Wait(ctx); err != nil {
		return core.Outcome{}, err
	}
	if g.breaker == nil {
		return g.inner.Apply(ctx, f, tactic, b)
	}
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.Apply(ctx, f, tactic, b)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return core.Outcome{}, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return core.Outcome{}, err
	}
	return res.(core.Outcome), nil
}

func (g *Guard) Probe(ctx context.Context, f core.Formula, name string) (float64, error) {
	if err := g.rate.Wait(ctx); err != nil {
		return 0, err
	}
	return g.inner.Probe(ctx, f, name)
}

func (g *Guard) Probes() []string {
	return g.inner.Probes()
}

// State reports the breaker state, or closed when no breaker is configured
func (g *Guard) State() gobreaker.State {
	if g.breaker == nil {
		return gobreaker.StateClosed
	}
	return g.breaker.State()
}
