package scaler

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fleetbench/internal/common"
	"github.com/ternarybob/fleetbench/internal/interfaces"
	"github.com/ternarybob/fleetbench/internal/models"
)

// Registry maps a service provider type to its scaler.
type Registry struct {
	scalers map[models.ProviderType]interfaces.ServiceScaler
}

// NewRegistry builds the scaler registry for the current deployment mode. In
// local mode only the container scaler is registered; requests for the cloud
// provider then fail softly at lookup time.
func NewRegistry(config *common.Config, logger arbor.ILogger) *Registry {
	scalers := map[models.ProviderType]interfaces.ServiceScaler{
		models.ProviderLocalContainer: NewDockerScaler(logger),
	}
	if !config.IsLocalMode() {
		scalers[models.ProviderCloudContainer] = NewECSScaler(logger)
	}
	return &Registry{scalers: scalers}
}

// Get returns the scaler for the provider type, if one is registered.
func (r *Registry) Get(provider models.ProviderType) (interfaces.ServiceScaler, bool) {
	s, ok := r.scalers[provider]
	return s, ok
}
