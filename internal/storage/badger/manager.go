package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fleetbench/internal/common"
	"github.com/ternarybob/fleetbench/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db         *BadgerDB
	jobs       interfaces.JobStorage
	subJobs    interfaces.SubJobStorage
	services   interfaces.ServiceStorage
	workers    interfaces.WorkerStorage
	workerData interfaces.WorkerDataStorage
	logger     arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:         db,
		jobs:       NewJobStorage(db, logger),
		subJobs:    NewSubJobStorage(db, logger),
		services:   NewServiceStorage(db, logger),
		workers:    NewWorkerStorage(db, logger),
		workerData: NewWorkerDataStorage(db, logger),
		logger:     logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// Jobs returns the job repository
func (m *Manager) Jobs() interfaces.JobStorage {
	return m.jobs
}

// SubJobs returns the sub-job repository
func (m *Manager) SubJobs() interfaces.SubJobStorage {
	return m.subJobs
}

// Services returns the service repository
func (m *Manager) Services() interfaces.ServiceStorage {
	return m.services
}

// Workers returns the worker repository
func (m *Manager) Workers() interfaces.WorkerStorage {
	return m.workers
}

// WorkerData returns the worker data repository
func (m *Manager) WorkerData() interfaces.WorkerDataStorage {
	return m.workerData
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
