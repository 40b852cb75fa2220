package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/snow-ghost/combiner/policy/local"
	"github.com/sony/gobreaker"
)

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	ReadyToTrip  func(counts gobreaker.Counts) bool
	IsSuccessful func(err error) bool // which errors count against the solver
}

// DefaultCircuitBreakerConfig returns a default circuit breaker configuration
func DefaultCircuitBreakerConfig(name string) *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  3,
		Interval:     10 * time.Second,
		Timeout:      30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Open once the solver crashed on ten calls in a row
			return counts.ConsecutiveFailures >= 10
		},
		IsSuccessful: solverHealthy,
	}
}

// newBreaker builds a gobreaker from config, reporting transitions to onChange
func newBreaker(cfg *CircuitBreakerConfig, onChange func(from, to gobreaker.State)) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:         cfg.Name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		ReadyToTrip:  cfg.ReadyToTrip,
		IsSuccessful: cfg.IsSuccessful,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if onChange != nil {
				onChange(from, to)
			}
		},
	})
}

// solverHealthy treats timeouts and policy rejections as normal outcomes.
// Only crashes count toward tripping the breaker.
func solverHealthy(err error) bool {
	return err == nil ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, local.ErrTacticDenied)
}
