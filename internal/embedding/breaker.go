package embedding

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerOptions tunes the circuit breaker.
type BreakerOptions struct {
	// MaxFailures consecutive failures open the circuit.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before a trial call.
	Timeout time.Duration
}

// Breaker stops calling a failing provider for a cool-down period. It
// does not retry.
type Breaker struct {
	inner Provider
	cb    *gobreaker.CircuitBreaker
}

// NewBreaker wraps inner with a circuit breaker.
func NewBreaker(inner Provider, opts BreakerOptions, logger *zap.Logger) *Breaker {
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:        "embedding-" + inner.Name(),
		MaxRequests: 1,
		Timeout:     opts.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about provider health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("embedding circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Breaker{inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *Breaker) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Embed(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &Error{Provider: b.inner.Name(), Message: "circuit open, skipping call", Cause: err}
		}
		return nil, err
	}
	return out.([]float32), nil
}

// State reports the breaker state for health output.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func (b *Breaker) Dimensions() int { return b.inner.Dimensions() }

func (b *Breaker) Name() string { return b.inner.Name() }

func (b *Breaker) Close() error { return b.inner.Close() }
