package jobs

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Store is a concurrency-safe in-memory job table. All mutation goes through
// its methods so a future multi-process executor can swap the backing
// structure without touching callers. Reads return copies; callers never see
// the live record.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	log  zerolog.Logger
}

// NewStore creates an empty job store.
func NewStore(log zerolog.Logger) *Store {
	return &Store{
		jobs: make(map[string]*Job),
		log:  log.With().Str("component", "job_store").Logger(),
	}
}

// Create registers a new queued job and returns a snapshot of it.
func (s *Store) Create(kind Kind, tag string) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := &Job{
		ID:        NewJobID(kind, tag),
		Kind:      kind,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
	}
	s.jobs[job.ID] = job
	return *job
}

// Get returns a snapshot of a job, if it exists.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// SetRunning transitions a queued job to running. Terminal jobs are never
// reactivated.
func (s *Store) SetRunning(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		return
	}
	job.Status = StatusRunning
}

// SetProgress advances a running job's progress. Progress never decreases
// and terminal jobs are left untouched.
func (s *Store) SetProgress(id string, progress float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		return
	}
	if progress > 1 {
		progress = 1
	}
	if progress > job.Progress {
		job.Progress = progress
	}
}

// Complete marks a job completed with its result. A job reaches a terminal
// state exactly once; later calls are ignored.
func (s *Store) Complete(id string, result interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		return
	}
	job.Status = StatusCompleted
	job.Progress = 1
	job.Result = result
	job.Error = ""
}

// Fail marks a job failed with an error message, leaving Result empty.
func (s *Store) Fail(id string, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		return
	}
	job.Status = StatusFailed
	job.Error = msg
	job.Result = nil
}

// Sweep deletes terminal jobs created before the retention window and
// reports how many were removed. In-flight jobs are never touched.
func (s *Store) Sweep(retention time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	removed := 0
	for id, job := range s.jobs {
		if job.Status.Terminal() && job.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("Swept old calculation jobs")
	}
	return removed
}

// Count returns the number of jobs currently tracked, by status.
func (s *Store) Count() map[Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[Status]int)
	for _, job := range s.jobs {
		counts[job.Status]++
	}
	return counts
}
