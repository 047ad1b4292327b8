package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	httpmanager "github.com/GriffinCanCode/apm-collector/internal/http"
	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/config"
	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/apm-collector/internal/module"
)

const TelemetryModule = "telemetry"

// TelemetrySettings are read from the telemetry module's config map.
type TelemetrySettings struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                     `json:"status"`
	Timestamp time.Time                  `json:"timestamp"`
	Metrics   monitoring.MetricsSnapshot `json:"metrics"`
	Modules   []module.Status            `json:"modules"`
}

// Telemetry implements the telemetry module: Prometheus metrics and a
// health summary on the shared HTTP listener.
type Telemetry struct {
	settings TelemetrySettings
	metrics  *monitoring.Metrics
	modules  *module.Manager
}

func NewTelemetry(metrics *monitoring.Metrics, raw map[string]any) (*Telemetry, error) {
	defaults := httpmanager.DefaultSettings()
	settings := TelemetrySettings{Host: defaults.Host, Port: defaults.Port}
	if err := config.Decode(raw, &settings); err != nil {
		return nil, fmt.Errorf("telemetry settings: %w", err)
	}
	return &Telemetry{settings: settings, metrics: metrics}, nil
}

func (t *Telemetry) Module() string                { return TelemetryModule }
func (t *Telemetry) Name() string                  { return ProviderName }
func (t *Telemetry) Services() []module.ServiceKey { return nil }
func (t *Telemetry) Requires() []string            { return []string{httpmanager.ModuleName} }

func (t *Telemetry) Prepare(ctx context.Context, b *module.Binder) error { return nil }

func (t *Telemetry) Start(ctx context.Context, m *module.Manager) error {
	mgr, err := httpmanager.Lookup(m)
	if err != nil {
		return err
	}
	e, err := mgr.CreateIfAbsent(t.settings.Host, t.settings.Port)
	if err != nil {
		return err
	}
	t.modules = m

	engine := e.Server().Engine
	engine.GET("/metrics", gin.WrapH(t.metrics.Handler()))
	engine.GET("/health", t.Health)
	return nil
}

func (t *Telemetry) Shutdown(ctx context.Context) error { return nil }

// Health reports "healthy" when every registered module is initialized.
func (t *Telemetry) Health(c *gin.Context) {
	statuses := t.modules.Statuses()
	status, code := "healthy", http.StatusOK
	for _, s := range statuses {
		if !s.Initialized {
			status, code = "starting", http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(code, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Metrics:   t.metrics.Snapshot(),
		Modules:   statuses,
	})
}
