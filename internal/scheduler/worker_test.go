package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

// ============================================================================
// NewWorker Tests
// ============================================================================

func TestNewWorker(t *testing.T) {
	t.Run("default timeout", func(t *testing.T) {
		w := NewWorker(testLogger())
		require.NotNil(t, w)
		assert.Equal(t, 30*time.Second, w.timeout)
		assert.NotNil(t, w.running)
		assert.NotNil(t, w.done)
	})

	t.Run("custom timeout", func(t *testing.T) {
		w := NewWorker(testLogger(), 5*time.Second)
		assert.Equal(t, 5*time.Second, w.timeout)
	})

	t.Run("non-positive timeout ignored", func(t *testing.T) {
		w := NewWorker(testLogger(), 0)
		assert.Equal(t, 30*time.Second, w.timeout)
	})
}

func TestNewWorker_NilLogger(t *testing.T) {
	w := NewWorker(nil)
	require.NotNil(t, w.logger)
}

// ============================================================================
// Add Tests
// ============================================================================

func TestWorker_Add(t *testing.T) {
	w := NewWorker(testLogger())
	noop := func(context.Context) (int, error) { return 0, nil }

	assert.NoError(t, w.Add(Job{Name: "every", Spec: "@every 1m", Run: noop}))
	assert.NoError(t, w.Add(Job{Name: "five-field", Spec: "*/5 * * * *", Run: noop}))
	assert.NoError(t, w.Add(Job{Name: "six-field", Spec: "0 */5 * * * *", Run: noop}))
	assert.Len(t, w.cron.Entries(), 3)

	assert.Error(t, w.Add(Job{Name: "bad", Spec: "not a spec", Run: noop}))
	assert.Error(t, w.Add(Job{Name: "", Spec: "@every 1m", Run: noop}))
	assert.Error(t, w.Add(Job{Name: "nil", Spec: "@every 1m"}))
}

// ============================================================================
// RunNow Tests
// ============================================================================

func TestWorker_RunNow(t *testing.T) {
	w := NewWorker(testLogger())
	var calls int32
	job := Sweep("limiter", "@every 1m", func() int {
		atomic.AddInt32(&calls, 1)
		return 3
	})

	w.RunNow(context.Background(), job)
	w.RunNow(context.Background(), job)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Empty(t, w.running)
}

func TestWorker_RunNow_ErrorAndPanicDoNotEscape(t *testing.T) {
	w := NewWorker(testLogger())

	assert.NotPanics(t, func() {
		w.RunNow(context.Background(), Job{Name: "fails", Run: func(context.Context) (int, error) {
			return 0, errors.New("boom")
		}})
		w.RunNow(context.Background(), Job{Name: "panics", Run: func(context.Context) (int, error) {
			panic("boom")
		}})
	})
	assert.Empty(t, w.running)
}

func TestWorker_RunNow_SkipsOverlappingRun(t *testing.T) {
	w := NewWorker(testLogger())
	release := make(chan struct{})
	started := make(chan struct{})
	var calls int32

	job := Job{Name: "slow", Run: func(ctx context.Context) (int, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
			<-release
		}
		return 0, nil
	}}

	finished := make(chan struct{})
	go func() {
		w.RunNow(context.Background(), job)
		close(finished)
	}()
	<-started

	w.RunNow(context.Background(), job)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	close(release)
	<-finished
	w.RunNow(context.Background(), job)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestWorker_RunNow_BoundedByTimeout(t *testing.T) {
	w := NewWorker(testLogger(), 20*time.Millisecond)
	var sawDeadline bool

	w.RunNow(context.Background(), Job{Name: "waits", Run: func(ctx context.Context) (int, error) {
		<-ctx.Done()
		sawDeadline = errors.Is(ctx.Err(), context.DeadlineExceeded)
		return 0, ctx.Err()
	}})

	assert.True(t, sawDeadline)
}

// ============================================================================
// Start / Stop Tests
// ============================================================================

func TestWorker_StartRunsScheduledJobs(t *testing.T) {
	w := NewWorker(testLogger())
	ran := make(chan struct{}, 1)
	require.NoError(t, w.Add(Job{Name: "tick", Spec: "@every 1s", Run: func(context.Context) (int, error) {
		select {
		case ran <- struct{}{}:
		default:
		}
		return 0, nil
	}}))

	w.Start()
	defer func() { _ = w.Stop(context.Background()) }()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled job did not run")
	}
}

func TestWorker_Stop(t *testing.T) {
	t.Run("stop without start", func(t *testing.T) {
		w := NewWorker(testLogger())
		assert.NoError(t, w.Stop(context.Background()))
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		w := NewWorker(testLogger())
		w.Start()
		assert.NoError(t, w.Stop(context.Background()))
		assert.NotPanics(t, func() {
			_ = w.Stop(context.Background())
		})
	})
}

func TestWorker_Stop_CancelsInFlightRun(t *testing.T) {
	w := NewWorker(testLogger(), time.Minute)
	started := make(chan struct{})
	var cancelled atomic.Bool

	finished := make(chan struct{})
	go func() {
		w.RunNow(context.Background(), Job{Name: "long", Run: func(ctx context.Context) (int, error) {
			close(started)
			<-ctx.Done()
			cancelled.Store(errors.Is(ctx.Err(), context.Canceled))
			return 0, nil
		}})
		close(finished)
	}()
	<-started

	require.NoError(t, w.Stop(context.Background()))

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("in-flight run was not cancelled")
	}
	assert.True(t, cancelled.Load())
}
