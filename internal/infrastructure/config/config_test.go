package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, int64(1), cfg.InstanceID)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Pipeline config
	assert.Equal(t, 1024, cfg.Pipeline.QueueSize)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.FlushInterval)
	assert.Equal(t, 2048, cfg.Pipeline.FlushThreshold)
	assert.Equal(t, 3, cfg.Pipeline.RetryBudget)
	assert.Equal(t, 3*time.Second, cfg.Pipeline.DAOTimeout)
	assert.Equal(t, "block", cfg.Pipeline.Backpressure)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 1024, cfg.Pipeline.QueueSize)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"COLLECTOR_CONFIG_FILE":    "/etc/collector/application.yaml",
		"INSTANCE_ID":              "7",
		"SHUTDOWN_TIMEOUT":         "10s",
		"LOG_LEVEL":                "debug",
		"LOG_DEV":                  "true",
		"PIPELINE_QUEUE_SIZE":      "2",
		"PIPELINE_FLUSH_INTERVAL":  "250ms",
		"PIPELINE_FLUSH_THRESHOLD": "16",
		"PIPELINE_RETRY_BUDGET":    "5",
		"PIPELINE_DAO_TIMEOUT":     "1s",
		"PIPELINE_BACKPRESSURE":    "reject",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/etc/collector/application.yaml", cfg.ConfigFile)
	assert.Equal(t, int64(7), cfg.InstanceID)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 2, cfg.Pipeline.QueueSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.FlushInterval)
	assert.Equal(t, 16, cfg.Pipeline.FlushThreshold)
	assert.Equal(t, 5, cfg.Pipeline.RetryBudget)
	assert.Equal(t, time.Second, cfg.Pipeline.DAOTimeout)
	assert.Equal(t, "reject", cfg.Pipeline.Backpressure)
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"queue size not a number", "PIPELINE_QUEUE_SIZE", "many"},
		{"zero queue size", "PIPELINE_QUEUE_SIZE", "0"},
		{"negative retry budget", "PIPELINE_RETRY_BUDGET", "-1"},
		{"unknown backpressure", "PIPELINE_BACKPRESSURE", "drop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadApplicationDefaults(t *testing.T) {
	app, err := LoadApplication("")
	require.NoError(t, err)
	assert.Equal(t, DefaultApplication(), app)

	app, err = LoadApplication(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"analysis_metric", "grpc_manager", "http_manager", "receiver", "storage", "telemetry",
	}, app.Names())
}

func TestLoadApplicationYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "application.yml")
	content := `modules:
  storage:
    provider: nats
    config:
      url: nats://nats:4222
      timeout_ms: 1500
  analysis_metric:
    config:
      queue_size: 8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	app, err := LoadApplication(path)
	require.NoError(t, err)

	assert.Equal(t, "nats", app.Modules["storage"].Provider)
	assert.Equal(t, "default", app.Modules["analysis_metric"].Provider)

	var settings struct {
		URL       string `yaml:"url"`
		TimeoutMS int    `yaml:"timeout_ms"`
		Bucket    string `yaml:"bucket_prefix"`
	}
	settings.Bucket = "collector"
	require.NoError(t, Decode(app.Modules["storage"].Config, &settings))
	assert.Equal(t, "nats://nats:4222", settings.URL)
	assert.Equal(t, 1500, settings.TimeoutMS)
	assert.Equal(t, "collector", settings.Bucket, "absent keys keep their defaults")
}

func TestLoadApplicationTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "application.toml")
	content := `[modules.storage]
provider = "memory"

[modules.http_manager.config]
port = 12801
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	app, err := LoadApplication(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"http_manager", "storage"}, app.Names())

	var settings struct {
		Port int `yaml:"port"`
	}
	require.NoError(t, Decode(app.Modules["http_manager"].Config, &settings))
	assert.Equal(t, 12801, settings.Port)
}

func TestLoadApplicationErrors(t *testing.T) {
	dir := t.TempDir()

	unsupported := filepath.Join(dir, "application.json")
	require.NoError(t, os.WriteFile(unsupported, []byte(`{}`), 0o600))
	_, err := LoadApplication(unsupported)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("modules: {}\n"), 0o600))
	_, err = LoadApplication(empty)
	assert.Error(t, err)

	broken := filepath.Join(dir, "broken.toml")
	require.NoError(t, os.WriteFile(broken, []byte("[modules\n"), 0o600))
	_, err = LoadApplication(broken)
	assert.Error(t, err)
}
