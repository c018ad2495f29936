package resilience

import (
	"context"
	"time"
)

// Policy bundles the guards applied to one downstream dependency. Every
// attempt runs under Timeout and goes through the breaker; the attempts are
// spaced by Retry.
type Policy struct {
	name    string
	timeout time.Duration
	retry   RetryConfig
	breaker *CircuitBreaker
}

type PolicyConfig struct {
	Timeout time.Duration
	Retry   RetryConfig
	Breaker CircuitBreakerConfig
}

func NewPolicy(name string, cfg PolicyConfig) *Policy {
	return &Policy{
		name:    name,
		timeout: cfg.Timeout,
		retry:   cfg.Retry,
		breaker: NewCircuitBreaker(name, cfg.Breaker),
	}
}

func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return Retry(ctx, p.name, p.retry, func(ctx context.Context) error {
		return p.breaker.Execute(func() error {
			return WithTimeout(ctx, p.timeout, p.name, fn)
		})
	})
}

func (p *Policy) Breaker() *CircuitBreaker {
	return p.breaker
}
