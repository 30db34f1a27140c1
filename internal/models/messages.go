package models

import (
	"encoding/json"
	"time"
)

// Bus message shapes. All messages are JSON over a durable topic exchange;
// times are RFC3339 (the default encoding of time.Time).

// WorkerJobMessage is the dispatch sent to the worker fleet for one benchmark
// sub-job, routed by the job's routing key.
type WorkerJobMessage struct {
	JobID   string           `json:"job_id"`
	Payload WorkerJobPayload `json:"payload"`
}

// WorkerJobPayload tells each worker what to download and when. StartTime
// synchronizes the fleet; DownloadStartTime is when bytes start flowing.
// Workers named in ExcludedWorkers sit this sub-job out.
type WorkerJobPayload struct {
	JobID             string    `json:"job_id"`
	SubJobID          string    `json:"sub_job_id"`
	URL               string    `json:"url"`
	StartTime         time.Time `json:"start_time"`
	DownloadStartTime time.Time `json:"download_start_time"`
	StartRange        int64     `json:"start_range"`
	EndRange          int64     `json:"end_range"`
	ExcludedWorkers   []string  `json:"excluded_workers"`
}

// WorkerResultMessage carries one worker's benchmark result back to the
// scheduler.
type WorkerResultMessage struct {
	JobID  string       `json:"job_id"`
	Result WorkerResult `json:"result"`
}

// WorkerResult is the per-worker measurement payload.
type WorkerResult struct {
	WorkerName string          `json:"worker_name"`
	SubJobID   string          `json:"sub_job_id"`
	IsSuccess  bool            `json:"is_success"`
	Download   json.RawMessage `json:"download,omitempty"`
	Ping       json.RawMessage `json:"ping,omitempty"`
	Head       json.RawMessage `json:"head,omitempty"`
}

// StatusKind discriminates worker status messages.
type StatusKind string

const (
	StatusKindLifecycle StatusKind = "lifecycle"
	StatusKindJob       StatusKind = "job"
	StatusKindHeartbeat StatusKind = "heartbeat"
)

// WorkerStatusMessage is a worker lifecycle, job-binding or heartbeat event.
// WorkerStatus and WorkerTopics are set for lifecycle messages; JobDetails for
// job messages (null means the worker became idle).
type WorkerStatusMessage struct {
	Kind         StatusKind        `json:"kind"`
	WorkerName   string            `json:"worker_name"`
	Timestamp    time.Time         `json:"timestamp"`
	WorkerStatus WorkerStatus      `json:"worker_status,omitempty"`
	WorkerTopics []string          `json:"worker_topics,omitempty"`
	JobDetails   *WorkerJobBinding `json:"job_details,omitempty"`
}

// WorkerJobBinding names the job (and optionally the sub-job) a worker picked
// up.
type WorkerJobBinding struct {
	JobID    string `json:"job_id"`
	SubJobID string `json:"sub_job_id,omitempty"`
}
