package scaler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/fleetbench/internal/common"
	"github.com/ternarybob/fleetbench/internal/models"
)

func TestRegistryLocalMode(t *testing.T) {
	config := common.NewDefaultConfig()
	require.True(t, config.IsLocalMode())

	registry := NewRegistry(config, common.GetLogger())

	_, ok := registry.Get(models.ProviderLocalContainer)
	assert.True(t, ok)
	_, ok = registry.Get(models.ProviderCloudContainer)
	assert.False(t, ok)
}

func TestRegistryProductionMode(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Environment = "production"

	registry := NewRegistry(config, common.GetLogger())

	_, ok := registry.Get(models.ProviderLocalContainer)
	assert.True(t, ok)
	_, ok = registry.Get(models.ProviderCloudContainer)
	assert.True(t, ok)
}
