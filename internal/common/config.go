package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Bus         BusConfig       `toml:"bus"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Auth        AuthConfig      `toml:"auth"`
	Logging     LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// BusConfig holds the AMQP broker connection and topology settings.
// Endpoint is an amqp:// or amqps:// URL; credentials may be embedded in the
// URL or supplied separately via User/Password (BUS_USER/BUS_PASSWORD).
type BusConfig struct {
	Endpoint        string `toml:"endpoint"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	JobExchange     string `toml:"job_exchange"`     // scheduler -> workers
	StatusExchange  string `toml:"status_exchange"`  // workers -> scheduler (lifecycle/heartbeat/job)
	ResultExchange  string `toml:"result_exchange"`  // workers -> scheduler (benchmark data)
	StatusQueue     string `toml:"status_queue"`
	ResultQueue     string `toml:"result_queue"`
	ReconnectDelay  string `toml:"reconnect_delay"`  // e.g. "2s"
	PublishTimeout  string `toml:"publish_timeout"`  // e.g. "5s"
}

// SchedulerConfig tunes the engine and reaper loops. The sub-job state machine
// deadlines (scaling deadline, download window) are fixed constants in the
// engine package; only loop cadence and worker liveness grace live here.
type SchedulerConfig struct {
	Tick           string `toml:"tick"`            // engine poll interval, e.g. "5s"
	ReaperInterval string `toml:"reaper_interval"` // descaler + liveness cadence, e.g. "60s"
	WorkerGrace    string `toml:"worker_grace"`    // heartbeat staleness before offline, e.g. "60s"
}

type AuthConfig struct {
	Token string `toml:"token"` // Bearer token for the /api surface
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability; only
// user-facing settings should be exposed in fleetbench.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 3000,
			Host: "0.0.0.0",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Bus: BusConfig{
			Endpoint:       "amqp://localhost:5672",
			JobExchange:    "benchmark.jobs",
			StatusExchange: "benchmark.status",
			ResultExchange: "benchmark.results",
			StatusQueue:    "scheduler_status",
			ResultQueue:    "scheduler_results",
			ReconnectDelay: "2s",
			PublishTimeout: "5s",
		},
		Scheduler: SchedulerConfig{
			Tick:           "5s",
			ReaperInterval: "60s",
			WorkerGrace:    "60s",
		},
		Auth: AuthConfig{
			Token: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFile loads configuration from a TOML file, applying defaults for
// missing values and environment variable overrides on top.
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Names follow the deployment contract: BUS_ENDPOINT, BUS_USER, BUS_PASSWORD,
// DATABASE_PATH, LOG_LEVEL, AUTH_TOKEN, LOCAL_MODE.
func applyEnvOverrides(config *Config) {
	if endpoint := os.Getenv("BUS_ENDPOINT"); endpoint != "" {
		config.Bus.Endpoint = endpoint
	}
	if user := os.Getenv("BUS_USER"); user != "" {
		config.Bus.User = user
	}
	if password := os.Getenv("BUS_PASSWORD"); password != "" {
		config.Bus.Password = password
	}
	if path := os.Getenv("DATABASE_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if token := os.Getenv("AUTH_TOKEN"); token != "" {
		config.Auth.Token = token
	}
	if localMode := os.Getenv("LOCAL_MODE"); localMode != "" {
		if local, err := strconv.ParseBool(localMode); err == nil && local {
			config.Environment = "development"
		} else {
			config.Environment = "production"
		}
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
}

// Validate checks cross-field constraints that TOML parsing cannot express.
func (c *Config) Validate() error {
	if c.Bus.Endpoint == "" {
		return fmt.Errorf("bus endpoint is required")
	}
	if c.Storage.Badger.Path == "" {
		return fmt.Errorf("storage path is required")
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"scheduler.tick", c.Scheduler.Tick},
		{"scheduler.reaper_interval", c.Scheduler.ReaperInterval},
		{"scheduler.worker_grace", c.Scheduler.WorkerGrace},
		{"bus.reconnect_delay", c.Bus.ReconnectDelay},
		{"bus.publish_timeout", c.Bus.PublishTimeout},
	} {
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("invalid duration for %s: %q", field.name, field.value)
		}
	}
	return nil
}

// IsLocalMode reports whether the scheduler runs against local container
// services only (development) rather than the cloud provider.
func (c *Config) IsLocalMode() bool {
	return c.Environment != "production"
}

// EngineTick returns the parsed engine poll interval.
func (c *Config) EngineTick() time.Duration {
	return mustDuration(c.Scheduler.Tick, 5*time.Second)
}

// ReaperInterval returns the parsed reaper cadence.
func (c *Config) ReaperIntervalDuration() time.Duration {
	return mustDuration(c.Scheduler.ReaperInterval, 60*time.Second)
}

// WorkerGrace returns how stale a heartbeat may be before a worker is
// considered offline.
func (c *Config) WorkerGraceDuration() time.Duration {
	return mustDuration(c.Scheduler.WorkerGrace, 60*time.Second)
}

// ReconnectDelayDuration returns the parsed bus reconnect delay.
func (b *BusConfig) ReconnectDelayDuration() time.Duration {
	return mustDuration(b.ReconnectDelay, 2*time.Second)
}

// PublishTimeoutDuration returns the parsed per-publish timeout.
func (b *BusConfig) PublishTimeoutDuration() time.Duration {
	return mustDuration(b.PublishTimeout, 5*time.Second)
}

func mustDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
