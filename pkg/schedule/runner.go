package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// JobFunc is one maintenance job execution.
type JobFunc func(ctx context.Context) error

// Runner fires registered jobs when their schedule says they are due.
// Jobs run sequentially on the runner's goroutine; a slow job delays
// the others rather than overlapping with them.
type Runner struct {
	mu       sync.Mutex
	jobs     map[string]*job
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
}

type job struct {
	name     string
	schedule Schedule
	fn       JobFunc
	nextRun  time.Time
	lastRun  *time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithCheckInterval sets how often the runner looks for due jobs.
func WithCheckInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithLogger sets the runner's logger.
func WithLogger(log *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// withClock overrides the time source in tests.
func withClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates an empty Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		jobs:     make(map[string]*job),
		interval: 30 * time.Second,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddJob registers a named job on a schedule.
func (r *Runner) AddJob(name string, s Schedule, fn JobFunc) error {
	if fn == nil {
		return ErrNilJob
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyRegistered, name)
	}
	r.jobs[name] = &job{
		name:     name,
		schedule: s,
		fn:       fn,
		nextRun:  s.Next(r.now()),
	}

	r.log.Info("registered maintenance job",
		slog.String("job", name),
		slog.String("schedule", s.String()))
	return nil
}

// Run triggers a job by name immediately, outside its schedule.
func (r *Runner) Run(ctx context.Context, name string) error {
	r.mu.Lock()
	j, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return r.execute(ctx, j)
}

// Start blocks, firing due jobs until the context is canceled.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	count := len(r.jobs)
	r.mu.Unlock()
	if count == 0 {
		return ErrNoJobs
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.runDue(ctx)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("job runner shutting down")
			return ctx.Err()
		case <-ticker.C:
			r.runDue(ctx)
		}
	}
}

func (r *Runner) runDue(ctx context.Context) {
	now := r.now()

	r.mu.Lock()
	due := make([]*job, 0, len(r.jobs))
	for _, j := range r.jobs {
		if !j.nextRun.After(now) {
			due = append(due, j)
		}
	}
	r.mu.Unlock()

	for _, j := range due {
		if err := r.execute(ctx, j); err != nil {
			r.log.ErrorContext(ctx, "maintenance job failed",
				slog.String("job", j.name),
				slog.String("error", err.Error()))
		}
	}
}

func (r *Runner) execute(ctx context.Context, j *job) error {
	started := r.now()
	err := j.fn(ctx)
	finished := r.now()

	r.mu.Lock()
	j.lastRun = &finished
	j.nextRun = j.schedule.Next(finished)
	r.mu.Unlock()

	if err == nil {
		r.log.InfoContext(ctx, "maintenance job finished",
			slog.String("job", j.name),
			slog.Duration("took", finished.Sub(started)))
	}
	return err
}
