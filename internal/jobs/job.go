// Package jobs provides asynchronous calculation job tracking and execution.
// A submitted calculation is registered in the job store, executed on a
// background worker, and polled by callers until it reaches a terminal state.
package jobs

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a calculation job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Kind identifies the calculation family a job belongs to.
type Kind string

const (
	KindPortfolio    Kind = "portfolio"
	KindRisk         Kind = "risk"
	KindFactor       Kind = "factor"
	KindOptimization Kind = "optimization"
)

// Job is a single tracked calculation. Progress is monotone non-decreasing
// while running and exactly 1.0 on completion. Result and Error are mutually
// exclusive. Terminal jobs are immutable except for deletion by the sweep.
type Job struct {
	ID        string      `json:"job_id"`
	Kind      Kind        `json:"kind"`
	Status    Status      `json:"status"`
	Progress  float64     `json:"progress"`
	Result    interface{} `json:"result"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewJobID builds a job identifier from the calculation kind, a
// request-derived tag and the creation time. The timestamp suffix doubles as
// the age marker used by the sweep.
func NewJobID(kind Kind, tag string) string {
	return fmt.Sprintf("%s_%s_%d", kind, tag, time.Now().UnixNano())
}
