// Package guard wraps collaborator reads in a circuit breaker and bounded
// retries. Whatever still fails comes back as repository.ErrDataUnavailable,
// which the service turns into its documented defaults.
package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/okian/rapport/internal/adapters/repository"
	"github.com/okian/rapport/pkg/logger"
	"github.com/okian/rapport/pkg/metrics"
)

const (
	defaultMaxRetries      = 2
	defaultInitialInterval = 50 * time.Millisecond
	defaultMaxInterval     = time.Second
	defaultBreakerFailures = 5
	defaultBreakerTimeout  = 30 * time.Second
	defaultHalfOpenProbes  = 1
)

// Option applies a configuration option to the Guard.
type Option func(*Guard)

// WithMaxRetries sets how many times a failed call is retried.
func WithMaxRetries(n uint64) Option {
	return func(g *Guard) {
		g.maxRetries = n
	}
}

// WithBackoff sets the first and the largest wait between retries.
func WithBackoff(initial, maxInterval time.Duration) Option {
	return func(g *Guard) {
		if initial > 0 {
			g.initialInterval = initial
		}
		if maxInterval >= g.initialInterval {
			g.maxInterval = maxInterval
		}
	}
}

// WithBreakerFailures sets how many consecutive failures open the breaker.
func WithBreakerFailures(n uint32) Option {
	return func(g *Guard) {
		if n > 0 {
			g.breakerFailures = n
		}
	}
}

// WithBreakerTimeout sets how long the breaker stays open.
func WithBreakerTimeout(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.breakerTimeout = d
		}
	}
}

// WithLogger sets the logger used for breaker transitions.
func WithLogger(l logger.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.log = l
		}
	}
}

// Guard protects one collaborator.
type Guard struct {
	name            string
	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
	breakerFailures uint32
	breakerTimeout  time.Duration
	log             logger.Logger
	cb              *gobreaker.CircuitBreaker
}

// New creates a guard named after the collaborator it protects.
func New(name string, opts ...Option) *Guard {
	g := &Guard{
		name:            name,
		maxRetries:      defaultMaxRetries,
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		breakerFailures: defaultBreakerFailures,
		breakerTimeout:  defaultBreakerTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logger.Named("guard")
	}

	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: defaultHalfOpenProbes,
		Timeout:     g.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= g.breakerFailures
		},
		// a missing record is an answer, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, repository.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.UpdateBreakerState(name, float64(to))
			g.log.Warn(context.Background(), "circuit breaker state change",
				logger.String("name", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
	})
	metrics.UpdateBreakerState(name, float64(gobreaker.StateClosed))
	return g
}

// Name returns the guarded collaborator's name.
func (g *Guard) Name() string { return g.name }

// State returns the breaker state.
func (g *Guard) State() gobreaker.State { return g.cb.State() }

// Do runs fn through the breaker, retrying transient failures with
// exponential backoff. ErrNotFound and context errors are returned as is.
// Everything else that survives the retries is wrapped in ErrDataUnavailable.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	op := func() error {
		_, err := g.cb.Execute(func() (interface{}, error) {
			return nil, fn(ctx)
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, repository.ErrNotFound),
			errors.Is(err, gobreaker.ErrOpenState),
			errors.Is(err, gobreaker.ErrTooManyRequests),
			ctx.Err() != nil:
			return backoff.Permanent(err)
		}
		return err
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = g.initialInterval
	exp.MaxInterval = g.maxInterval
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, g.maxRetries), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		metrics.RecordFetchRetry(g.name)
		g.log.Debug(ctx, "retrying collaborator call",
			logger.String("name", g.name),
			logger.Duration("wait", wait),
			logger.Error(err))
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	}
	metrics.RecordFetchFailure(g.name)
	return fmt.Errorf("%w: %s: %w", repository.ErrDataUnavailable, g.name, err)
}

func call[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := g.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
