package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WorkerData is one worker's benchmark result for one sub-job. The download,
// ping and head payloads are stored opaquely; the engine only counts rows.
type WorkerData struct {
	ID         string          `json:"id" badgerhold:"key"`
	SubJobID   string          `json:"sub_job_id"`
	WorkerName string          `json:"worker_name"`
	IsSuccess  bool            `json:"is_success"`
	Download   json.RawMessage `json:"download,omitempty"`
	Ping       json.RawMessage `json:"ping,omitempty"`
	Head       json.RawMessage `json:"head,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewWorkerData creates a result row from an ingested worker result.
func NewWorkerData(result *WorkerResult) *WorkerData {
	return &WorkerData{
		ID:         uuid.New().String(),
		SubJobID:   result.SubJobID,
		WorkerName: result.WorkerName,
		IsSuccess:  result.IsSuccess,
		Download:   result.Download,
		Ping:       result.Ping,
		Head:       result.Head,
		CreatedAt:  time.Now().UTC(),
	}
}
