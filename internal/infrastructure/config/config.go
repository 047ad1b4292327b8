package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds process configuration read from the environment.
type Config struct {
	ConfigFile      string        `envconfig:"COLLECTOR_CONFIG_FILE"`
	InstanceID      int64         `envconfig:"INSTANCE_ID" default:"1"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	Logging         LogConfig
	Pipeline        PipelineConfig
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// PipelineConfig holds defaults for every persistence worker. A module's
// application file settings take precedence.
type PipelineConfig struct {
	QueueSize      int           `envconfig:"PIPELINE_QUEUE_SIZE" default:"1024"`
	FlushInterval  time.Duration `envconfig:"PIPELINE_FLUSH_INTERVAL" default:"5s"`
	FlushThreshold int           `envconfig:"PIPELINE_FLUSH_THRESHOLD" default:"2048"`
	RetryBudget    int           `envconfig:"PIPELINE_RETRY_BUDGET" default:"3"`
	DAOTimeout     time.Duration `envconfig:"PIPELINE_DAO_TIMEOUT" default:"3s"`
	Backpressure   string        `envconfig:"PIPELINE_BACKPRESSURE" default:"block"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		InstanceID:      1,
		ShutdownTimeout: 30 * time.Second,
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Pipeline: PipelineConfig{
			QueueSize:      1024,
			FlushInterval:  5 * time.Second,
			FlushThreshold: 2048,
			RetryBudget:    3,
			DAOTimeout:     3 * time.Second,
			Backpressure:   "block",
		},
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	p := c.Pipeline
	switch {
	case p.QueueSize <= 0:
		return fmt.Errorf("invalid config: PIPELINE_QUEUE_SIZE must be positive, got %d", p.QueueSize)
	case p.FlushInterval <= 0:
		return fmt.Errorf("invalid config: PIPELINE_FLUSH_INTERVAL must be positive, got %s", p.FlushInterval)
	case p.FlushThreshold <= 0:
		return fmt.Errorf("invalid config: PIPELINE_FLUSH_THRESHOLD must be positive, got %d", p.FlushThreshold)
	case p.RetryBudget <= 0:
		return fmt.Errorf("invalid config: PIPELINE_RETRY_BUDGET must be positive, got %d", p.RetryBudget)
	case p.DAOTimeout <= 0:
		return fmt.Errorf("invalid config: PIPELINE_DAO_TIMEOUT must be positive, got %s", p.DAOTimeout)
	}

	switch strings.ToLower(p.Backpressure) {
	case "block", "reject":
	default:
		return fmt.Errorf("invalid config: PIPELINE_BACKPRESSURE must be block or reject, got %q", p.Backpressure)
	}
	return nil
}
