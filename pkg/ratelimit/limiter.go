package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/richxcame/scamshield/pkg/config"
)

const (
	ReasonMinute = "Too many requests. Please wait a minute before trying again."
	ReasonHour   = "Hourly limit reached. Please try again later."
)

var rejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ratelimit_rejections_total",
	Help: "Requests rejected by the abuse gate, by window",
}, []string{"window", "backend"})

// Window is one sliding window the gate enforces.
type Window struct {
	Name   string
	Size   time.Duration
	Limit  int
	Reason string
}

// Windows returns the minute and hour windows from cfg, shortest first.
func Windows(cfg config.RateLimitConfig) []Window {
	return []Window{
		{Name: "minute", Size: time.Minute, Limit: cfg.PerMinute, Reason: ReasonMinute},
		{Name: "hour", Size: time.Hour, Limit: cfg.PerHour, Reason: ReasonHour},
	}
}

func longest(windows []Window) time.Duration {
	var max time.Duration
	for _, w := range windows {
		if w.Size > max {
			max = w.Size
		}
	}
	return max
}

// Result describes the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Key        string
	Window     string
	Reason     string
	RetryAfter time.Duration
	Remaining  int
}

// LimitError is returned to callers when a key exceeded one of its windows.
type LimitError struct {
	Window     string
	Reason     string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limited (%s window): %s", e.Window, e.Reason)
}

// Err converts a rejected Result into a *LimitError, or nil when allowed.
func (r Result) Err() error {
	if r.Allowed {
		return nil
	}
	return &LimitError{Window: r.Window, Reason: r.Reason, RetryAfter: r.RetryAfter}
}

// Limiter is a sliding-window gate keyed by client IP or domain.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

func allowAll(key string) Result {
	return Result{Allowed: true, Key: key, Remaining: -1}
}

func toInt(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	default:
		return 0
	}
}
