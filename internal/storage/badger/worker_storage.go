package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/fleetbench/internal/interfaces"
	"github.com/ternarybob/fleetbench/internal/models"
)

// WorkerStorage implements the WorkerStorage interface for Badger. Every
// timestamped mutation applies only when the incoming timestamp is newer than
// the stored last_seen, so redelivered or reordered status messages converge
// on the same row.
type WorkerStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewWorkerStorage creates a new WorkerStorage instance
func NewWorkerStorage(db *BadgerDB, logger arbor.ILogger) interfaces.WorkerStorage {
	return &WorkerStorage{
		db:     db,
		logger: logger,
	}
}

func (s *WorkerStorage) Get(ctx context.Context, name string) (*models.Worker, error) {
	var worker models.Worker
	if err := s.db.Store().Get(name, &worker); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get worker: %w", err)
	}
	return &worker, nil
}

func (s *WorkerStorage) List(ctx context.Context) ([]*models.Worker, error) {
	var workers []models.Worker
	query := badgerhold.Where("Name").Ne("").SortBy("Name")
	if err := s.db.Store().Find(&workers, query); err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}

	result := make([]*models.Worker, len(workers))
	for i := range workers {
		result[i] = &workers[i]
	}
	return result, nil
}

func (s *WorkerStorage) OnlineByTopic(ctx context.Context, topic string) ([]string, error) {
	var workers []models.Worker
	query := badgerhold.Where("Status").Eq(models.WorkerOnline).And("Topics").Contains(topic)
	if err := s.db.Store().Find(&workers, query); err != nil {
		return nil, fmt.Errorf("failed to query online workers: %w", err)
	}

	names := make([]string, len(workers))
	for i := range workers {
		names[i] = workers[i].Name
	}
	return names, nil
}

// UpsertLifecycle applies an online/offline lifecycle event. Topic bindings
// are set on online and removed on offline; started_at/shutdown_at record the
// respective edge. The worker's current job is cleared on either edge.
func (s *WorkerStorage) UpsertLifecycle(ctx context.Context, name string, status models.WorkerStatus, topics []string, timestamp time.Time) error {
	worker, err := s.Get(ctx, name)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			return err
		}
		worker = &models.Worker{Name: name}
	} else if !worker.LastSeen.Before(timestamp) {
		// Stale message, drop it.
		return nil
	}

	worker.Status = status
	worker.LastSeen = timestamp
	worker.JobID = ""
	ts := timestamp
	switch status {
	case models.WorkerOnline:
		worker.StartedAt = &ts
		worker.Topics = topics
	case models.WorkerOffline:
		worker.ShutdownAt = &ts
		worker.Topics = nil
	}

	if err := s.db.Store().Upsert(worker.Name, worker); err != nil {
		return fmt.Errorf("failed to upsert worker: %w", err)
	}
	return nil
}

func (s *WorkerStorage) UpdateJob(ctx context.Context, name string, jobID string, timestamp time.Time) error {
	worker, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	if !worker.LastSeen.Before(timestamp) {
		return nil
	}

	worker.LastSeen = timestamp
	worker.JobID = jobID

	if err := s.db.Store().Upsert(worker.Name, worker); err != nil {
		return fmt.Errorf("failed to update worker job: %w", err)
	}
	return nil
}

// Heartbeat advances last_seen and forces the worker online; a worker that
// heartbeats is alive regardless of what the liveness reaper decided.
func (s *WorkerStorage) Heartbeat(ctx context.Context, name string, timestamp time.Time) error {
	worker, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	if !worker.LastSeen.Before(timestamp) {
		return nil
	}

	worker.LastSeen = timestamp
	worker.Status = models.WorkerOnline

	if err := s.db.Store().Upsert(worker.Name, worker); err != nil {
		return fmt.Errorf("failed to update worker heartbeat: %w", err)
	}
	return nil
}

func (s *WorkerStorage) StaleOnline(ctx context.Context, cutoff time.Time) ([]string, error) {
	var workers []models.Worker
	query := badgerhold.Where("Status").Eq(models.WorkerOnline).And("LastSeen").Lt(cutoff)
	if err := s.db.Store().Find(&workers, query); err != nil {
		return nil, fmt.Errorf("failed to query stale workers: %w", err)
	}

	names := make([]string, len(workers))
	for i := range workers {
		names[i] = workers[i].Name
	}
	return names, nil
}

// SetOffline marks a worker offline without touching its topic bindings, so
// a brief disconnect does not lose the fleet topology.
func (s *WorkerStorage) SetOffline(ctx context.Context, name string) error {
	worker, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	worker.Status = models.WorkerOffline
	if err := s.db.Store().Upsert(worker.Name, worker); err != nil {
		return fmt.Errorf("failed to set worker offline: %w", err)
	}
	return nil
}
