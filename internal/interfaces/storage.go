package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/fleetbench/internal/models"
)

// ErrNotFound is returned by point lookups when the row does not exist.
// HTTP handlers translate it to 404.
var ErrNotFound = errors.New("not found")

// StorageManager bundles the per-entity repositories over one database.
type StorageManager interface {
	Jobs() JobStorage
	SubJobs() SubJobStorage
	Services() ServiceStorage
	Workers() WorkerStorage
	WorkerData() WorkerDataStorage
	Close() error
}

// ListOptions is shared paging for list queries.
type ListOptions struct {
	Limit  int
	Offset int
}

// JobStorage persists benchmark jobs.
type JobStorage interface {
	Save(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id string) (*models.Job, error)
	List(ctx context.Context, opts ListOptions) ([]*models.Job, error)
	UpdateStatus(ctx context.Context, id string, status models.JobStatus) error
	SetWorkersCount(ctx context.Context, id string, workersCount int) error
}

// SubJobStorage persists pipeline steps. FirstUnfinished is the engine's work
// pick: the globally oldest sub-job whose status is created, pending or
// processing.
type SubJobStorage interface {
	Save(ctx context.Context, subJob *models.SubJob) error
	Get(ctx context.Context, id string) (*models.SubJob, error)
	ListByJob(ctx context.Context, jobID string) ([]*models.SubJob, error)
	FirstUnfinished(ctx context.Context) (*models.SubJob, error)
	GetByJobAndType(ctx context.Context, jobID string, typ models.SubJobType) (*models.SubJob, error)
	CountUnfinished(ctx context.Context, jobID string, typ models.SubJobType) (int, error)
	UpdateStatus(ctx context.Context, id string, status models.SubJobStatus) error
	UpdateStatusDeadline(ctx context.Context, id string, status models.SubJobStatus, deadline time.Time) error
	FailWithError(ctx context.Context, id string, message string) error
	SetWorkersCount(ctx context.Context, id string, workersCount int) error
	CancelByJob(ctx context.Context, jobID string) error
}

// ServiceStorage persists scalable worker pools and their topic bindings.
type ServiceStorage interface {
	Save(ctx context.Context, service *models.Service) error
	Get(ctx context.Context, id string) (*models.Service, error)
	List(ctx context.Context) ([]*models.Service, error)
	Delete(ctx context.Context, id string) error
	EnabledByTopic(ctx context.Context, topic string) ([]*models.Service, error)
	SetDescaleDeadlines(ctx context.Context, ids []string, deadline time.Time) error
	DescaleDue(ctx context.Context, now time.Time) ([]*models.Service, error)
	ClearDescaleDeadline(ctx context.Context, id string) error
}

// WorkerStorage persists worker liveness. All mutations that carry a
// timestamp are guarded by last_seen monotonicity; stale updates are dropped
// without error.
type WorkerStorage interface {
	Get(ctx context.Context, name string) (*models.Worker, error)
	List(ctx context.Context) ([]*models.Worker, error)
	OnlineByTopic(ctx context.Context, topic string) ([]string, error)
	UpsertLifecycle(ctx context.Context, name string, status models.WorkerStatus, topics []string, timestamp time.Time) error
	UpdateJob(ctx context.Context, name string, jobID string, timestamp time.Time) error
	Heartbeat(ctx context.Context, name string, timestamp time.Time) error
	StaleOnline(ctx context.Context, cutoff time.Time) ([]string, error)
	SetOffline(ctx context.Context, name string) error
}

// WorkerDataStorage persists benchmark result rows. Rows are append-only
// while a sub-job is in flight; completion counting uses distinct worker
// names so duplicate deliveries cannot complete a sub-job early.
type WorkerDataStorage interface {
	Append(ctx context.Context, data *models.WorkerData) error
	BySubJob(ctx context.Context, subJobID string) ([]*models.WorkerData, error)
	CountDistinctWorkers(ctx context.Context, subJobID string) (int, error)
}
