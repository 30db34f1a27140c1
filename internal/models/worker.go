package models

import "time"

// WorkerStatus is the liveness state of a worker process.
type WorkerStatus string

const (
	WorkerOnline  WorkerStatus = "online"
	WorkerOffline WorkerStatus = "offline"
)

// Worker is one worker process instance, keyed by its self-reported name.
// LastSeen advances monotonically: any mutation carrying an older timestamp
// is dropped, which makes status ingestion idempotent under redelivery and
// reordering.
type Worker struct {
	Name       string       `json:"worker_name" badgerhold:"key"`
	Status     WorkerStatus `json:"status"`
	LastSeen   time.Time    `json:"last_seen"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	ShutdownAt *time.Time   `json:"shutdown_at,omitempty"`
	JobID      string       `json:"job_id,omitempty"`
	Topics     []string     `json:"topics"`
}
