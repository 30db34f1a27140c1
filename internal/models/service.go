package models

import (
	"time"

	"github.com/google/uuid"
)

// ProviderType identifies which scaler drives a service.
type ProviderType string

const (
	ProviderLocalContainer ProviderType = "local_container"
	ProviderCloudContainer ProviderType = "cloud_container"
)

// ServiceDetails holds provider-specific settings. Cluster and Region are
// required for the cloud-container provider and ignored by the local one.
type ServiceDetails struct {
	Cluster string `json:"cluster,omitempty"`
	Region  string `json:"region,omitempty"`
}

// Service is a scalable pool of benchmark workers bound to one or more
// routing topics. DescaleAt is the forced-teardown deadline maintained by the
// scaling step and consumed by the descaler; nil means no teardown scheduled.
type Service struct {
	ID           string         `json:"id" badgerhold:"key"`
	Name         string         `json:"name"`
	ProviderType ProviderType   `json:"provider_type"`
	Details      ServiceDetails `json:"details"`
	IsEnabled    bool           `json:"is_enabled"`
	DescaleAt    *time.Time     `json:"descale_at"`
	Topics       []string       `json:"topics"`
	CreatedAt    time.Time      `json:"created_at"`
}

// NewService creates an enabled service with a fresh id.
func NewService(name string, provider ProviderType, details ServiceDetails, topics []string) *Service {
	return &Service{
		ID:           uuid.New().String(),
		Name:         name,
		ProviderType: provider,
		Details:      details,
		IsEnabled:    true,
		Topics:       topics,
		CreatedAt:    time.Now().UTC(),
	}
}

// HasTopic reports whether the service serves the given routing topic.
func (s *Service) HasTopic(topic string) bool {
	for _, t := range s.Topics {
		if t == topic {
			return true
		}
	}
	return false
}
