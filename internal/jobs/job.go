// Package jobs holds the scheduled CRM jobs and the Runner that executes them.
package jobs

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"
)

// Job is one scheduled unit of work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Status is a job's position in the Idle -> Running -> {Succeeded, Failed} -> Idle cycle.
type Status string

const (
	StatusIdle      Status = "IDLE"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Result describes one finished run.
type Result struct {
	Job        string
	Status     Status
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

// Succeeded reports whether the run ended in StatusSucceeded.
func (r Result) Succeeded() bool { return r.Status == StatusSucceeded }

// MetricsRecorder receives one call per finished run.
type MetricsRecorder interface {
	RecordJobRun(ctx context.Context, job string, succeeded bool, duration time.Duration) error
}

// Runner executes jobs with a timeout, turns panics and errors into a failed
// Result and never returns an error to its caller.
type Runner struct {
	timeout time.Duration
	metrics MetricsRecorder
	nowFunc func() time.Time

	mu     sync.Mutex
	states map[string]Status
}

// NewRunner returns a Runner. A zero timeout means no deadline; metrics may be nil.
func NewRunner(timeout time.Duration, metrics MetricsRecorder) *Runner {
	return &Runner{
		timeout: timeout,
		metrics: metrics,
		nowFunc: time.Now,
		states:  map[string]Status{},
	}
}

// State returns the current state of the named job.
func (r *Runner) State(name string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.states[name]; ok {
		return s
	}
	return StatusIdle
}

func (r *Runner) setState(name string, s Status) {
	r.mu.Lock()
	r.states[name] = s
	r.mu.Unlock()
}

// Run executes job once. The returned Result carries the terminal status;
// afterwards the job is Idle again.
func (r *Runner) Run(ctx context.Context, job Job) Result {
	name := job.Name()

	// overlapping runs of one job are the scheduler's concern
	r.setState(name, StatusRunning)
	defer r.setState(name, StatusIdle)

	res := Result{Job: name, StartedAt: r.nowFunc()}
	log.Printf("[jobs] %s: started", name)

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	res.Err = safeRun(runCtx, job)
	res.FinishedAt = r.nowFunc()
	if res.Err != nil {
		res.Status = StatusFailed
		log.Printf("[jobs] %s: failed after %s: %v", name, res.FinishedAt.Sub(res.StartedAt), res.Err)
	} else {
		res.Status = StatusSucceeded
		log.Printf("[jobs] %s: succeeded in %s", name, res.FinishedAt.Sub(res.StartedAt))
	}
	r.setState(name, res.Status)

	if r.metrics != nil {
		// metrics use the parent context so a timed-out run is still recorded
		if err := r.metrics.RecordJobRun(ctx, name, res.Succeeded(), res.FinishedAt.Sub(res.StartedAt)); err != nil {
			log.Printf("[jobs] %s: record metrics: %v", name, err)
		}
	}
	return res
}

func safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[jobs] %s: panic: %v\n%s", job.Name(), rec, debug.Stack())
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return job.Run(ctx)
}
