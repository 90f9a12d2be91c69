// Package background runs export and render work off the interactive
// goroutine. Every job has its own cancel function; cancelling a job
// cancels its context and the job is expected to discard its output.
package background

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit caps how many jobs run at once.
const DefaultLimit = 2

// Runner starts and tracks jobs.
//
// Thread-safety: all methods are safe for concurrent use.
type Runner struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu   sync.Mutex
	jobs []*Job
}

// New creates a runner whose jobs derive from parent. limit <= 0 means
// DefaultLimit.
func New(parent context.Context, limit int) *Runner {
	if limit <= 0 {
		limit = DefaultLimit
	}
	ctx, cancel := context.WithCancel(parent)
	g := new(errgroup.Group)
	g.SetLimit(limit)
	return &Runner{ctx: ctx, cancel: cancel, group: g}
}

// Job is one unit of background work.
type Job struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Go starts fn in the background. It blocks while the runner is at its
// concurrency limit.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) *Job {
	ctx, cancel := context.WithCancel(r.ctx)
	j := &Job{name: name, cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	r.jobs = append(r.jobs, j)
	r.mu.Unlock()

	r.group.Go(func() error {
		defer close(j.done)
		defer cancel()

		start := time.Now()
		j.err = fn(ctx)
		switch {
		case j.err == nil:
			slog.Debug("job finished", "job", name, "duration", time.Since(start))
		case errors.Is(j.err, context.Canceled):
			slog.Info("job cancelled", "job", name)
		default:
			slog.Error("job failed", "job", name, "error", j.err)
		}
		return j.err
	})
	return j
}

// Name returns the job name.
func (j *Job) Name() string { return j.name }

// Cancel asks the job to stop. It does not wait.
func (j *Job) Cancel() { j.cancel() }

// Done is closed when the job has returned.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job returns and reports its error.
func (j *Job) Wait() error {
	<-j.done
	return j.err
}

// Wait blocks until every job has returned and reports the first error.
func (r *Runner) Wait() error {
	return r.group.Wait()
}

// Shutdown cancels every job and waits for them to return.
func (r *Runner) Shutdown() error {
	r.cancel()
	err := r.group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Pending returns the number of jobs that have not returned yet.
func (r *Runner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, j := range r.jobs {
		select {
		case <-j.done:
		default:
			n++
		}
	}
	return n
}
