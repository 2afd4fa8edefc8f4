package jobs

import (
	"time"

	"github.com/rs/zerolog"
)

// SweepJob removes aged-out terminal jobs. It implements scheduler.Job and
// runs hourly.
type SweepJob struct {
	store     *Store
	retention time.Duration
	log       zerolog.Logger
}

// NewSweepJob creates the periodic cleanup job.
func NewSweepJob(store *Store, retention time.Duration, log zerolog.Logger) *SweepJob {
	return &SweepJob{
		store:     store,
		retention: retention,
		log:       log.With().Str("job", "jobs:sweep").Logger(),
	}
}

// Name returns the job identifier for scheduler logging.
func (j *SweepJob) Name() string {
	return "jobs:sweep"
}

// Run deletes terminal jobs older than the retention window.
func (j *SweepJob) Run() error {
	removed := j.store.Sweep(j.retention)
	j.log.Debug().Int("removed", removed).Msg("Job sweep finished")
	return nil
}
