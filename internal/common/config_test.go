package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, 3000, config.Server.Port)
	assert.Equal(t, "amqp://localhost:5672", config.Bus.Endpoint)
	assert.Equal(t, "benchmark.jobs", config.Bus.JobExchange)
	assert.True(t, config.IsLocalMode())
	assert.Equal(t, 5*time.Second, config.EngineTick())
	assert.Equal(t, 60*time.Second, config.ReaperIntervalDuration())
	assert.Equal(t, 60*time.Second, config.WorkerGraceDuration())
	assert.Equal(t, 2*time.Second, config.Bus.ReconnectDelayDuration())
	require.NoError(t, config.Validate())
}

func TestLoadFromFileMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetbench.toml")
	content := `
environment = "production"

[server]
port = 8080

[scheduler]
tick = "2s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	config, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Server.Port)
	assert.False(t, config.IsLocalMode())
	assert.Equal(t, 2*time.Second, config.EngineTick())
	// Untouched sections keep their defaults.
	assert.Equal(t, "benchmark.status", config.Bus.StatusExchange)
	assert.Equal(t, 60*time.Second, config.ReaperIntervalDuration())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BUS_ENDPOINT", "amqp://broker.internal:5672")
	t.Setenv("BUS_USER", "bench")
	t.Setenv("BUS_PASSWORD", "secret")
	t.Setenv("DATABASE_PATH", "/var/lib/fleetbench")
	t.Setenv("AUTH_TOKEN", "token-123")
	t.Setenv("LOCAL_MODE", "false")
	t.Setenv("SERVER_PORT", "9090")

	config, err := LoadFromFile("")
	require.NoError(t, err)

	assert.Equal(t, "amqp://broker.internal:5672", config.Bus.Endpoint)
	assert.Equal(t, "bench", config.Bus.User)
	assert.Equal(t, "secret", config.Bus.Password)
	assert.Equal(t, "/var/lib/fleetbench", config.Storage.Badger.Path)
	assert.Equal(t, "token-123", config.Auth.Token)
	assert.False(t, config.IsLocalMode())
	assert.Equal(t, 9090, config.Server.Port)
}

func TestValidateRejectsBadDurations(t *testing.T) {
	config := NewDefaultConfig()
	config.Scheduler.Tick = "five seconds"

	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduler.tick")
}

func TestValidateRequiresEndpointAndPath(t *testing.T) {
	config := NewDefaultConfig()
	config.Bus.Endpoint = ""
	require.Error(t, config.Validate())

	config = NewDefaultConfig()
	config.Storage.Badger.Path = ""
	require.Error(t, config.Validate())
}

func TestLoadFromFileMissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
