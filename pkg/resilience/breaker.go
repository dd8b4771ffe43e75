package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when a breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Settings configures a CircuitBreaker. Zero fields take the upstream defaults.
type Settings struct {
	Name             string
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	SuccessThreshold uint32
}

// Operation is a unit of work guarded by a breaker or retried.
type Operation func(ctx context.Context) (interface{}, error)

// CircuitBreaker guards one upstream (AI detector, an enrichment API) with
// gobreaker, a fallback and per-upstream metrics.
type CircuitBreaker struct {
	name     string
	cb       *gobreaker.CircuitBreaker
	fallback FallbackFunc
}

// NewCircuitBreaker builds a breaker that trips after FailureThreshold consecutive failures.
func NewCircuitBreaker(settings Settings, fallback FallbackFunc) *CircuitBreaker {
	settings = settings.withDefaults()
	name := settings.Name
	if fallback == nil {
		fallback = reject
	}
	threshold := settings.FailureThreshold

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.SuccessThreshold,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: observeTransition,
		IsSuccessful: func(err error) bool {
			// caller cancellations say nothing about the dependency's health
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	upstreamBreakerState.WithLabelValues(name).Set(stateValue(gobreaker.StateClosed))
	return &CircuitBreaker{name: name, cb: gobreaker.NewCircuitBreaker(st), fallback: fallback}
}

// Name returns the breaker name used in metrics.
func (b *CircuitBreaker) Name() string {
	return b.name
}

// State returns the current breaker state.
func (b *CircuitBreaker) State() gobreaker.State {
	return b.cb.State()
}

// Execute runs op through the breaker. When the breaker is open the fallback answers.
func (b *CircuitBreaker) Execute(ctx context.Context, op Operation) (interface{}, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return op(ctx)
	})
	switch {
	case err == nil:
		upstreamCalls.WithLabelValues(b.name, "ok").Inc()
		return result, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		upstreamCalls.WithLabelValues(b.name, "rejected").Inc()
		return b.fallback(ctx, err)
	}
	upstreamCalls.WithLabelValues(b.name, "error").Inc()
	return nil, err
}
