package enrichment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/richxcame/scamshield/pkg/logger"
	"go.uber.org/zap"
)

var (
	lookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_lookups_total",
			Help: "Enrichment lookups by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	lookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enrichment_lookup_duration_seconds",
			Help:    "Enrichment lookup latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 3, 5},
		},
		[]string{"kind"},
	)
)

// Task is one independent lookup
type Task struct {
	Kind Kind
	Key  string
	Run  func(ctx context.Context) (Payload, error)
}

// SettleAll runs every task concurrently, each under its own timeout, and
// waits for all of them. A failed, panicking or timed-out task yields an
// unknown result and never affects its siblings. Results keep task order.
func SettleAll(ctx context.Context, timeout time.Duration, tasks []Task) []Result {
	results := make([]Result, len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task Task) {
			defer wg.Done()
			results[i] = settle(ctx, timeout, task)
		}(i, task)
	}
	wg.Wait()
	return results
}

func settle(parent context.Context, timeout time.Duration, task Task) Result {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	type outcome struct {
		payload Payload
		err     error
	}
	done := make(chan outcome, 1)
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("lookup panicked: %v", r)}
			}
		}()
		p, err := task.Run(ctx)
		done <- outcome{payload: p, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = outcome{err: ctx.Err()}
	}

	elapsed := time.Since(start)
	lookupDuration.WithLabelValues(string(task.Kind)).Observe(elapsed.Seconds())

	res := Result{Kind: task.Kind, Key: task.Key, DurationMs: elapsed.Milliseconds()}
	if out.err == nil && out.payload == nil {
		out.err = errors.New("lookup returned no payload")
	}
	if out.err != nil {
		res.Status = StatusUnknown
		res.Error = out.err.Error()
		lookupsTotal.WithLabelValues(string(task.Kind), string(StatusUnknown)).Inc()
		logger.WithContext(parent).Warn("enrichment lookup failed",
			zap.String("kind", string(task.Kind)),
			zap.String("key", task.Key),
			zap.Duration("elapsed", elapsed),
			zap.Error(out.err),
		)
		return res
	}

	res.Status = StatusOK
	res.Payload = out.payload
	lookupsTotal.WithLabelValues(string(task.Kind), string(StatusOK)).Inc()
	return res
}
