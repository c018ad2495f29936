// Package resilience guards calls to external stores: a circuit breaker,
// exponential-backoff retry, a timeout wrapper, and a Policy that composes
// all three around a single sink write.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker phase as exported in metrics: 0 closed, 1 open,
// 2 half-open.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// CircuitBreakerConfig controls when the breaker trips and how long it stays
// open. OnStateChange, if set, sees every transition.
type CircuitBreakerConfig struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxRequests int
	OnStateChange       func(name string, from, to State)
}

// CircuitBreaker opens after FailureThreshold consecutive failures and lets
// up to HalfOpenMaxRequests probes through once ResetTimeout has passed.
type CircuitBreaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = 1
	}
	logger := slog.Default().With("component", "circuit-breaker", "name", name)
	threshold := uint32(cfg.FailureThreshold)
	return &CircuitBreaker{
		name: name,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: uint32(cfg.HalfOpenMaxRequests),
			Timeout:     cfg.ResetTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				if to == gobreaker.StateOpen {
					logger.Warn("circuit opened", "from", from.String())
				} else {
					logger.Info("circuit state changed", "from", from.String(), "to", to.String())
				}
				if cfg.OnStateChange != nil {
					cfg.OnStateChange(name, fromGobreaker(from), fromGobreaker(to))
				}
			},
		}),
	}
}

// Execute runs fn if the breaker admits it and records the outcome. A
// rejected call wraps ErrCircuitOpen.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	_, err := cb.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return fmt.Errorf("%w: %s", ErrCircuitOpen, cb.name)
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %s, half-open probe limit reached", ErrCircuitOpen, cb.name)
	}
	return err
}

func (cb *CircuitBreaker) State() State {
	return fromGobreaker(cb.cb.State())
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// ConsecutiveFailures is the current run of failed calls.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	return int(cb.cb.Counts().ConsecutiveFailures)
}
