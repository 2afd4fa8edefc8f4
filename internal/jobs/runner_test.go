package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func awaitTerminal(t *testing.T, store *Store, id string) Job {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job, ok := store.Get(id); ok && job.Status.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal state")
	return Job{}
}

func TestRunnerSuccess(t *testing.T) {
	store := NewStore(zerolog.Nop())
	runner := NewRunner(store, 2, zerolog.Nop())

	id := runner.Submit(KindRisk, "1", func(ctx context.Context, report func(float64)) (interface{}, error) {
		report(0.5)
		return 42, nil
	})

	job := awaitTerminal(t, store, id)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 42, job.Result)
	assert.Equal(t, 1.0, job.Progress)
}

func TestRunnerFailure(t *testing.T) {
	store := NewStore(zerolog.Nop())
	runner := NewRunner(store, 1, zerolog.Nop())

	id := runner.Submit(KindFactor, "1", func(ctx context.Context, report func(float64)) (interface{}, error) {
		return nil, errors.New("insufficient observations")
	})

	job := awaitTerminal(t, store, id)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "insufficient observations", job.Error)
	assert.Nil(t, job.Result)
}

func TestRunnerRecoversPanic(t *testing.T) {
	store := NewStore(zerolog.Nop())
	runner := NewRunner(store, 1, zerolog.Nop())

	id := runner.Submit(KindOptimization, "1", func(ctx context.Context, report func(float64)) (interface{}, error) {
		panic("solver blew up")
	})

	job := awaitTerminal(t, store, id)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Contains(t, job.Error, "solver blew up")
}

func TestRunnerBoundsConcurrency(t *testing.T) {
	store := NewStore(zerolog.Nop())
	runner := NewRunner(store, 2, zerolog.Nop())

	var mu sync.Mutex
	running, peak := 0, 0
	release := make(chan struct{})

	task := func(ctx context.Context, report func(float64)) (interface{}, error) {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()

		<-release

		mu.Lock()
		running--
		mu.Unlock()
		return nil, nil
	}

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		ids = append(ids, runner.Submit(KindRisk, "load", task))
	}

	// Give the workers a moment to saturate the semaphore.
	time.Sleep(50 * time.Millisecond)
	close(release)

	for _, id := range ids {
		awaitTerminal(t, store, id)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2)
}

func TestRunnerShutdownWaitsForInFlight(t *testing.T) {
	store := NewStore(zerolog.Nop())
	runner := NewRunner(store, 1, zerolog.Nop())

	started := make(chan struct{})
	id := runner.Submit(KindRisk, "slow", func(ctx context.Context, report func(float64)) (interface{}, error) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		return "finished", nil
	})

	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, runner.Shutdown(ctx))

	job, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, job.Status)
}
