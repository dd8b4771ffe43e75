package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

var (
	upstreamBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "upstream_breaker_state",
		Help: "Breaker state per upstream (0=closed, 0.5=half-open, 1=open)",
	}, []string{"upstream"})

	upstreamCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_breaker_calls_total",
		Help: "Calls through an upstream breaker by result (ok, error, rejected)",
	}, []string{"upstream", "result"})

	upstreamTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_breaker_transitions_total",
		Help: "Upstream breaker state transitions",
	}, []string{"upstream", "from", "to"})
)

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 0.5
	case gobreaker.StateOpen:
		return 1
	}
	return -1
}

func observeTransition(name string, from, to gobreaker.State) {
	upstreamTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
	upstreamBreakerState.WithLabelValues(name).Set(stateValue(to))
}
