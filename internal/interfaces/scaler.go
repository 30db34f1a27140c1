package interfaces

import (
	"context"

	"github.com/ternarybob/fleetbench/internal/models"
)

// ServiceScalerInfo describes a service's instance counts as reported by its
// provider. Desired/Running/Pending are provider-dependent and nil when the
// provider cannot report them.
type ServiceScalerInfo struct {
	Name         string              `json:"name"`
	Instances    int                 `json:"instances"`
	DesiredCount *int                `json:"desired_count,omitempty"`
	RunningCount *int                `json:"running_count,omitempty"`
	PendingCount *int                `json:"pending_count,omitempty"`
	ProviderType models.ProviderType `json:"provider_type"`
}

// ServiceScaler drives a provider's desired instance count. ScaleUp and
// ScaleDown adjust by a relative amount, saturating at zero; implementations
// read the current count first, so a lost race between concurrent adjustments
// converges on subsequent engine ticks.
type ServiceScaler interface {
	ScaleUp(ctx context.Context, service *models.Service, amount int) error
	ScaleDown(ctx context.Context, service *models.Service, amount int) error
	GetInfo(ctx context.Context, service *models.Service) (*ServiceScalerInfo, error)
}

// ScalerRegistry resolves the scaler for a provider type. A missing provider
// is a soft condition: callers skip and retry rather than failing the
// sub-job terminally.
type ScalerRegistry interface {
	Get(provider models.ProviderType) (ServiceScaler, bool)
}
