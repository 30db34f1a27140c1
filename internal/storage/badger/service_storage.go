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

// ServiceStorage implements the ServiceStorage interface for Badger
type ServiceStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewServiceStorage creates a new ServiceStorage instance
func NewServiceStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ServiceStorage {
	return &ServiceStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ServiceStorage) Save(ctx context.Context, service *models.Service) error {
	if service.ID == "" {
		return fmt.Errorf("service ID is required")
	}
	if err := s.db.Store().Upsert(service.ID, service); err != nil {
		return fmt.Errorf("failed to save service: %w", err)
	}
	return nil
}

func (s *ServiceStorage) Get(ctx context.Context, id string) (*models.Service, error) {
	var service models.Service
	if err := s.db.Store().Get(id, &service); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return &service, nil
}

func (s *ServiceStorage) List(ctx context.Context) ([]*models.Service, error) {
	var services []models.Service
	query := badgerhold.Where("ID").Ne("").SortBy("CreatedAt")
	if err := s.db.Store().Find(&services, query); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}

	result := make([]*models.Service, len(services))
	for i := range services {
		result[i] = &services[i]
	}
	return result, nil
}

func (s *ServiceStorage) Delete(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Service{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return interfaces.ErrNotFound
		}
		return fmt.Errorf("failed to delete service: %w", err)
	}
	return nil
}

func (s *ServiceStorage) EnabledByTopic(ctx context.Context, topic string) ([]*models.Service, error) {
	var services []models.Service
	query := badgerhold.Where("IsEnabled").Eq(true).And("Topics").Contains(topic).SortBy("CreatedAt")
	if err := s.db.Store().Find(&services, query); err != nil {
		return nil, fmt.Errorf("failed to query services by topic: %w", err)
	}

	result := make([]*models.Service, len(services))
	for i := range services {
		result[i] = &services[i]
	}
	return result, nil
}

// SetDescaleDeadlines extends the teardown deadline of the given services.
// The deadline only ever moves forward; a later deadline already in place is
// kept.
func (s *ServiceStorage) SetDescaleDeadlines(ctx context.Context, ids []string, deadline time.Time) error {
	for _, id := range ids {
		service, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if service.DescaleAt != nil && service.DescaleAt.After(deadline) {
			continue
		}
		d := deadline
		service.DescaleAt = &d
		if err := s.Save(ctx, service); err != nil {
			return err
		}
	}
	return nil
}

func (s *ServiceStorage) DescaleDue(ctx context.Context, now time.Time) ([]*models.Service, error) {
	var services []models.Service
	query := badgerhold.Where("DescaleAt").MatchFunc(func(ra *badgerhold.RecordAccess) (bool, error) {
		deadline, ok := ra.Field().(*time.Time)
		if !ok || deadline == nil {
			return false, nil
		}
		return !deadline.After(now), nil
	})
	if err := s.db.Store().Find(&services, query); err != nil {
		return nil, fmt.Errorf("failed to query due services: %w", err)
	}

	result := make([]*models.Service, len(services))
	for i := range services {
		result[i] = &services[i]
	}
	return result, nil
}

func (s *ServiceStorage) ClearDescaleDeadline(ctx context.Context, id string) error {
	service, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	service.DescaleAt = nil
	return s.Save(ctx, service)
}
