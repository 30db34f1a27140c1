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

// unfinished are the statuses the engine still drives forward.
var unfinished = []interface{}{
	models.SubJobStatusCreated,
	models.SubJobStatusPending,
	models.SubJobStatusProcessing,
}

// SubJobStorage implements the SubJobStorage interface for Badger
type SubJobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSubJobStorage creates a new SubJobStorage instance
func NewSubJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SubJobStorage {
	return &SubJobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SubJobStorage) Save(ctx context.Context, subJob *models.SubJob) error {
	if subJob.ID == "" {
		return fmt.Errorf("sub-job ID is required")
	}
	if err := s.db.Store().Upsert(subJob.ID, subJob); err != nil {
		return fmt.Errorf("failed to save sub-job: %w", err)
	}
	return nil
}

func (s *SubJobStorage) Get(ctx context.Context, id string) (*models.SubJob, error) {
	var subJob models.SubJob
	if err := s.db.Store().Get(id, &subJob); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get sub-job: %w", err)
	}
	return &subJob, nil
}

func (s *SubJobStorage) ListByJob(ctx context.Context, jobID string) ([]*models.SubJob, error) {
	var subJobs []models.SubJob
	query := badgerhold.Where("JobID").Eq(jobID).SortBy("CreatedAt")
	if err := s.db.Store().Find(&subJobs, query); err != nil {
		return nil, fmt.Errorf("failed to list sub-jobs: %w", err)
	}

	result := make([]*models.SubJob, len(subJobs))
	for i := range subJobs {
		result[i] = &subJobs[i]
	}
	return result, nil
}

// FirstUnfinished returns the globally oldest sub-job still in flight. This
// ordering is what guarantees a job's scaling step runs before its benchmark
// steps: the scaling step is always the earliest row of its job.
func (s *SubJobStorage) FirstUnfinished(ctx context.Context) (*models.SubJob, error) {
	var subJobs []models.SubJob
	query := badgerhold.Where("Status").In(unfinished...).SortBy("CreatedAt").Limit(1)
	if err := s.db.Store().Find(&subJobs, query); err != nil {
		return nil, fmt.Errorf("failed to query unfinished sub-jobs: %w", err)
	}
	if len(subJobs) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return &subJobs[0], nil
}

func (s *SubJobStorage) GetByJobAndType(ctx context.Context, jobID string, typ models.SubJobType) (*models.SubJob, error) {
	var subJobs []models.SubJob
	query := badgerhold.Where("JobID").Eq(jobID).And("Type").Eq(typ).SortBy("CreatedAt").Limit(1)
	if err := s.db.Store().Find(&subJobs, query); err != nil {
		return nil, fmt.Errorf("failed to query sub-jobs: %w", err)
	}
	if len(subJobs) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return &subJobs[0], nil
}

func (s *SubJobStorage) CountUnfinished(ctx context.Context, jobID string, typ models.SubJobType) (int, error) {
	var subJobs []models.SubJob
	query := badgerhold.Where("JobID").Eq(jobID).And("Type").Eq(typ).And("Status").In(unfinished...)
	if err := s.db.Store().Find(&subJobs, query); err != nil {
		return 0, fmt.Errorf("failed to count unfinished sub-jobs: %w", err)
	}
	return len(subJobs), nil
}

func (s *SubJobStorage) UpdateStatus(ctx context.Context, id string, status models.SubJobStatus) error {
	subJob, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	subJob.Status = status
	return s.Save(ctx, subJob)
}

func (s *SubJobStorage) UpdateStatusDeadline(ctx context.Context, id string, status models.SubJobStatus, deadline time.Time) error {
	subJob, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	subJob.Status = status
	subJob.DeadlineAt = &deadline
	return s.Save(ctx, subJob)
}

func (s *SubJobStorage) FailWithError(ctx context.Context, id string, message string) error {
	subJob, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	subJob.Status = models.SubJobStatusFailed
	subJob.Details.Error = message
	return s.Save(ctx, subJob)
}

func (s *SubJobStorage) SetWorkersCount(ctx context.Context, id string, workersCount int) error {
	subJob, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	subJob.Details.WorkersCount = workersCount
	return s.Save(ctx, subJob)
}

// CancelByJob cancels every sub-job of a job that has not already finished.
// Terminal rows are left untouched to keep status monotonic.
func (s *SubJobStorage) CancelByJob(ctx context.Context, jobID string) error {
	subJobs, err := s.ListByJob(ctx, jobID)
	if err != nil {
		return err
	}
	for _, subJob := range subJobs {
		if subJob.Status.IsTerminal() {
			continue
		}
		subJob.Status = models.SubJobStatusCanceled
		if err := s.Save(ctx, subJob); err != nil {
			return err
		}
	}
	return nil
}
