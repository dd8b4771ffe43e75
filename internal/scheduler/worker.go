package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var jobRuns = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "housekeeping_job_runs_total",
		Help: "Housekeeping job runs by job and outcome",
	},
	[]string{"job", "outcome"},
)

// Job is one periodic housekeeping task. Run returns how many items it
// removed or refreshed, for logging.
type Job struct {
	Name string
	Spec string // cron spec, seconds optional ("@every 1m" also accepted)
	Run  func(ctx context.Context) (int, error)
}

// Worker runs housekeeping jobs on cron schedules. A job never overlaps
// with itself; a slow run makes the next tick skip.
type Worker struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	running map[string]bool
	done    chan struct{}
	stopped bool
}

// NewWorker creates a worker. Each run is bounded by timeout, default 30s.
func NewWorker(logger *zap.Logger, timeout ...time.Duration) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := 30 * time.Second
	if len(timeout) > 0 && timeout[0] > 0 {
		t = timeout[0]
	}
	return &Worker{
		cron:    cron.New(cron.WithParser(cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
		logger:  logger,
		timeout: t,
		running: make(map[string]bool),
		done:    make(chan struct{}),
	}
}

// Add schedules job. It must be called before Start.
func (w *Worker) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("invalid job %q", job.Name)
	}
	if _, err := w.cron.AddFunc(job.Spec, func() { w.RunNow(context.Background(), job) }); err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name, err)
	}
	w.logger.Info("housekeeping job scheduled", zap.String("job", job.Name), zap.String("spec", job.Spec))
	return nil
}

// Start begins running scheduled jobs in the background
func (w *Worker) Start() {
	w.cron.Start()
	w.logger.Info("housekeeping worker started", zap.Int("jobs", len(w.cron.Entries())))
}

// Stop halts the schedule and waits for in-flight runs, up to ctx.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.done)
	w.mu.Unlock()

	select {
	case <-w.cron.Stop().Done():
		w.logger.Info("housekeeping worker stopped")
		return nil
	case <-ctx.Done():
		w.logger.Warn("housekeeping worker stop timed out")
		return ctx.Err()
	}
}

// RunNow runs job once on the calling goroutine, unless it is already running.
func (w *Worker) RunNow(ctx context.Context, job Job) {
	w.mu.Lock()
	if w.running[job.Name] {
		w.mu.Unlock()
		jobRuns.WithLabelValues(job.Name, "skipped").Inc()
		w.logger.Debug("housekeeping job still running, skipping tick", zap.String("job", job.Name))
		return
	}
	w.running[job.Name] = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.running, job.Name)
		w.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	// stop cancels in-flight runs
	go func() {
		select {
		case <-w.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	start := time.Now()
	n, err := w.safeRun(ctx, job)
	if err != nil {
		jobRuns.WithLabelValues(job.Name, "error").Inc()
		w.logger.Error("housekeeping job failed", zap.String("job", job.Name), zap.Error(err))
		return
	}
	jobRuns.WithLabelValues(job.Name, "ok").Inc()
	w.logger.Debug("housekeeping job finished",
		zap.String("job", job.Name),
		zap.Int("affected", n),
		zap.Duration("took", time.Since(start)),
	)
}

func (w *Worker) safeRun(ctx context.Context, job Job) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job.Run(ctx)
}

// Sweep adapts an in-memory sweeper (limiter windows, host cooldowns) to a Job
func Sweep(name, spec string, sweep func() int) Job {
	return Job{
		Name: name,
		Spec: spec,
		Run: func(context.Context) (int, error) {
			return sweep(), nil
		},
	}
}
