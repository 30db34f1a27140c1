package models

import (
	"time"

	"github.com/google/uuid"
)

// SubJobStatus mirrors JobStatus for individual pipeline steps.
type SubJobStatus string

const (
	SubJobStatusCreated    SubJobStatus = "created"
	SubJobStatusPending    SubJobStatus = "pending"
	SubJobStatusProcessing SubJobStatus = "processing"
	SubJobStatusCompleted  SubJobStatus = "completed"
	SubJobStatusFailed     SubJobStatus = "failed"
	SubJobStatusCanceled   SubJobStatus = "canceled"
)

// IsTerminal reports whether the sub-job can make no further progress.
func (s SubJobStatus) IsTerminal() bool {
	return s == SubJobStatusCompleted || s == SubJobStatusFailed || s == SubJobStatusCanceled
}

// SubJobType distinguishes the pipeline step kinds.
type SubJobType string

const (
	// SubJobTypeScaling ensures enough workers are online for the job's topic
	// before any benchmark step dispatches. It is always the earliest sub-job
	// of a job.
	SubJobTypeScaling SubJobType = "scaling"
	// SubJobTypeCombinedDHP is the Download/HEAD/Ping benchmark executed by
	// the worker fleet.
	SubJobTypeCombinedDHP SubJobType = "combined_dhp"
)

// SubJobDetails holds the type-specific fields of a sub-job. Topic is set for
// scaling steps; Partial and WorkersCount belong to benchmark steps. Error
// carries the terminal failure reason.
type SubJobDetails struct {
	Topic        string `json:"topic,omitempty"`
	Partial      int    `json:"partial,omitempty"` // percentage of online workers that run this step, (0,100)
	WorkersCount int    `json:"workers_count,omitempty"`
	Error        string `json:"error,omitempty"`
}

// SubJob is one step of a job's pipeline, advanced one transition per engine
// tick.
type SubJob struct {
	ID         string        `json:"id" badgerhold:"key"`
	JobID      string        `json:"job_id"`
	Type       SubJobType    `json:"type"`
	Status     SubJobStatus  `json:"status"`
	Details    SubJobDetails `json:"details"`
	DeadlineAt *time.Time    `json:"deadline_at"`
	CreatedAt  time.Time     `json:"created_at"`
}

// NewSubJob creates a sub-job in the created state. CreatedAt ordering is the
// pipeline ordering, so callers creating several steps must create them in
// pipeline order.
func NewSubJob(jobID string, typ SubJobType, details SubJobDetails) *SubJob {
	return &SubJob{
		ID:        uuid.New().String(),
		JobID:     jobID,
		Type:      typ,
		Status:    SubJobStatusCreated,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
}
