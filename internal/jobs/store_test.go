package jobs

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLifecycle(t *testing.T) {
	store := NewStore(zerolog.Nop())

	job := store.Create(KindRisk, "42")
	assert.Equal(t, StatusQueued, job.Status)
	assert.Contains(t, job.ID, "risk_42_")

	got, ok := store.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, job.ID, got.ID)

	store.SetRunning(job.ID)
	store.SetProgress(job.ID, 0.4)
	got, _ = store.Get(job.ID)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, 0.4, got.Progress)

	store.Complete(job.ID, "done")
	got, _ = store.Get(job.ID)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 1.0, got.Progress)
	assert.Equal(t, "done", got.Result)
}

func TestStoreProgressNeverDecreases(t *testing.T) {
	store := NewStore(zerolog.Nop())
	job := store.Create(KindFactor, "1")

	store.SetRunning(job.ID)
	store.SetProgress(job.ID, 0.8)
	store.SetProgress(job.ID, 0.3)
	got, _ := store.Get(job.ID)
	assert.Equal(t, 0.8, got.Progress)

	// Progress is capped at 1.
	store.SetProgress(job.ID, 7)
	got, _ = store.Get(job.ID)
	assert.Equal(t, 1.0, got.Progress)
}

func TestStoreTerminalIsFinal(t *testing.T) {
	store := NewStore(zerolog.Nop())
	job := store.Create(KindOptimization, "1")

	store.Fail(job.ID, "boom")
	store.Complete(job.ID, "late result")
	store.SetProgress(job.ID, 0.9)

	got, _ := store.Get(job.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
	assert.Nil(t, got.Result)
}

func TestStoreGetMissing(t *testing.T) {
	store := NewStore(zerolog.Nop())
	_, ok := store.Get("nope")
	assert.False(t, ok)
}

func TestStoreSweep(t *testing.T) {
	store := NewStore(zerolog.Nop())

	old := store.Create(KindRisk, "old")
	store.Complete(old.ID, nil)
	running := store.Create(KindRisk, "running")
	store.SetRunning(running.ID)

	// Zero retention makes every terminal job stale immediately.
	time.Sleep(time.Millisecond)
	removed := store.Sweep(0)
	assert.Equal(t, 1, removed)

	_, ok := store.Get(old.ID)
	assert.False(t, ok)
	_, ok = store.Get(running.ID)
	assert.True(t, ok)
}

func TestStoreCount(t *testing.T) {
	store := NewStore(zerolog.Nop())

	a := store.Create(KindRisk, "a")
	store.Create(KindRisk, "b")
	store.Complete(a.ID, nil)

	counts := store.Count()
	assert.Equal(t, 1, counts[StatusQueued])
	assert.Equal(t, 1, counts[StatusCompleted])
}
