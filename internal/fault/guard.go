package fault

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// DefaultCallTimeout is the per-call budget applied when a Guard is built
// with a zero timeout.
const DefaultCallTimeout = 30 * time.Second

// Guard bounds every call to one external dependency with a timeout and a
// circuit breaker. A Guard is safe for concurrent use.
type Guard struct {
	// name labels the dependency in errors and breaker logs.
	name string
	// timeout is the per-call latency budget.
	timeout time.Duration
	// breaker trips after repeated failures so a dead dependency fails fast.
	breaker *gobreaker.CircuitBreaker
}

// NewGuard constructs a Guard for the named dependency.
func NewGuard(name string, timeout time.Duration, log *slog.Logger) *Guard {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Caller cancellations say nothing about the dependency's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				slog.String("dependency", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return &Guard{name: name, timeout: timeout, breaker: breaker}
}

// Name returns the dependency label.
func (g *Guard) Name() string { return g.name }

// Timeout returns the per-call budget.
func (g *Guard) Timeout() time.Duration { return g.timeout }

// Do runs fn with a context bounded by the guard's timeout.
//
// Errors are classified: an exceeded budget becomes ProviderTimeout, an open
// breaker or any other failure becomes ProviderUnavailable unless fn already
// returned a classified error. Cancellation of the caller's ctx is returned
// unchanged.
func (g *Guard) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		err := fn(callCtx)
		if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, &Error{Kind: KindProviderTimeout, Op: op, Err: err}
		}
		return nil, err
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &Error{Kind: KindProviderUnavailable, Op: op, Err: err}
	}
	return Wrap(KindProviderUnavailable, op, err)
}
