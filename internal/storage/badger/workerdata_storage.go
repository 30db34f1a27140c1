package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/fleetbench/internal/interfaces"
	"github.com/ternarybob/fleetbench/internal/models"
)

// WorkerDataStorage implements the WorkerDataStorage interface for Badger
type WorkerDataStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewWorkerDataStorage creates a new WorkerDataStorage instance
func NewWorkerDataStorage(db *BadgerDB, logger arbor.ILogger) interfaces.WorkerDataStorage {
	return &WorkerDataStorage{
		db:     db,
		logger: logger,
	}
}

func (s *WorkerDataStorage) Append(ctx context.Context, data *models.WorkerData) error {
	if data.ID == "" {
		return fmt.Errorf("worker data ID is required")
	}
	if err := s.db.Store().Insert(data.ID, data); err != nil {
		return fmt.Errorf("failed to append worker data: %w", err)
	}
	return nil
}

func (s *WorkerDataStorage) BySubJob(ctx context.Context, subJobID string) ([]*models.WorkerData, error) {
	var rows []models.WorkerData
	query := badgerhold.Where("SubJobID").Eq(subJobID).SortBy("CreatedAt")
	if err := s.db.Store().Find(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to query worker data: %w", err)
	}

	result := make([]*models.WorkerData, len(rows))
	for i := range rows {
		result[i] = &rows[i]
	}
	return result, nil
}

// CountDistinctWorkers counts distinct worker names for a sub-job. Duplicate
// rows from at-least-once result delivery therefore never complete a sub-job
// early.
func (s *WorkerDataStorage) CountDistinctWorkers(ctx context.Context, subJobID string) (int, error) {
	rows, err := s.BySubJob(ctx, subJobID)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		seen[row.WorkerName] = struct{}{}
	}
	return len(seen), nil
}
