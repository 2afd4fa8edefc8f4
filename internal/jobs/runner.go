package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Task is a unit of calculation work. It reports coarse progress through the
// callback at phase boundaries and returns either a result or an error.
type Task func(ctx context.Context, report func(progress float64)) (interface{}, error)

// Runner executes jobs on background goroutines, bounded by a worker
// semaphore. It is the sole boundary converting raised errors (and panics)
// into recorded job state; nothing escapes to crash the process.
type Runner struct {
	store   *Store
	sem     chan struct{}
	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
	log     zerolog.Logger
}

// NewRunner creates a runner with the given maximum number of concurrent jobs.
func NewRunner(store *Store, workers int, log zerolog.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		store:   store,
		sem:     make(chan struct{}, workers),
		baseCtx: ctx,
		cancel:  cancel,
		log:     log.With().Str("component", "job_runner").Logger(),
	}
}

// Submit registers a job and schedules its task without blocking the caller.
// The returned job id can be polled immediately.
func (r *Runner) Submit(kind Kind, tag string, task Task) string {
	job := r.store.Create(kind, tag)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		select {
		case r.sem <- struct{}{}:
		case <-r.baseCtx.Done():
			r.store.Fail(job.ID, "engine shutting down")
			return
		}
		defer func() { <-r.sem }()

		r.execute(job.ID, task)
	}()

	return job.ID
}

// execute runs a task, recording its outcome in the store.
func (r *Runner) execute(id string, task Task) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().Str("job", id).Interface("panic", p).Msg("Job panicked")
			r.store.Fail(id, fmt.Sprintf("internal error: %v", p))
		}
	}()

	r.store.SetRunning(id)
	start := time.Now()

	result, err := task(r.baseCtx, func(progress float64) {
		r.store.SetProgress(id, progress)
	})
	if err != nil {
		r.log.Error().Err(err).Str("job", id).Msg("Job failed")
		r.store.Fail(id, err.Error())
		return
	}

	r.store.Complete(id, result)
	r.log.Info().Str("job", id).Dur("took", time.Since(start)).Msg("Job completed")
}

// Shutdown stops accepting late work and waits for in-flight jobs, up to the
// context deadline.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
