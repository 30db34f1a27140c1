package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a benchmark job. Transitions only move
// forward along created -> pending -> processing -> completed; failed and
// canceled are absorbing.
type JobStatus string

const (
	JobStatusCreated    JobStatus = "created"
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCanceled   JobStatus = "canceled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCanceled
}

// JobDetails carries the benchmark parameters chosen at submission plus the
// worker count the engine settles on during scaling.
type JobDetails struct {
	StartRange        int64  `json:"start_range"`
	EndRange          int64  `json:"end_range"`
	TargetWorkerCount int    `json:"target_worker_count,omitempty"`
	WorkersCount      int    `json:"workers_count,omitempty"` // set by the scaling step
	Entity            string `json:"entity,omitempty"`
	Note              string `json:"note,omitempty"`
	LogIntervalMs     int    `json:"log_interval_ms"`
	SizeMB            int64  `json:"size_mb"`
}

// Job is a client-submitted benchmark request. Its pipeline is a totally
// ordered sequence of SubJobs: one scaling step followed by the benchmark
// steps.
type Job struct {
	ID         string     `json:"id" badgerhold:"key"`
	URL        string     `json:"url"`
	RoutingKey string     `json:"routing_key"`
	Status     JobStatus  `json:"status"`
	Details    JobDetails `json:"details"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewJob creates a pending job with a fresh id.
func NewJob(url, routingKey string, details JobDetails) *Job {
	return &Job{
		ID:         uuid.New().String(),
		URL:        url,
		RoutingKey: routingKey,
		Status:     JobStatusPending,
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}
}

// JobWithSubJobs is the API shape for job reads.
type JobWithSubJobs struct {
	Job
	SubJobs []*SubJob `json:"sub_jobs"`
}

// SubJobWithData is the API shape for detailed job reads.
type SubJobWithData struct {
	SubJob
	WorkerData []*WorkerData `json:"worker_data"`
}

// JobWithSubJobsAndData is the API shape for single-job reads including
// per-worker benchmark rows.
type JobWithSubJobsAndData struct {
	Job
	SubJobs []*SubJobWithData `json:"sub_jobs"`
}
