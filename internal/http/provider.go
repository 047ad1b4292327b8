package http

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/config"
	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/apm-collector/internal/listener"
	"github.com/GriffinCanCode/apm-collector/internal/module"
)

const (
	ModuleName   = "http_manager"
	ProviderName = "default"

	ManagerService module.ServiceKey = "http_manager.manager"
)

// Manager is the listener registry shared by HTTP handlers.
type Manager = listener.Manager[*Server]

// Settings are read from the http_manager module's config map.
type Settings struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	ReadHeaderTimeoutMS int    `yaml:"read_header_timeout_ms"`
}

func DefaultSettings() Settings {
	return Settings{
		Host:                "0.0.0.0",
		Port:                12800,
		ReadHeaderTimeoutMS: 10000,
	}
}

func (s Settings) readHeaderTimeout() time.Duration {
	return time.Duration(s.ReadHeaderTimeoutMS) * time.Millisecond
}

// Provider implements the http_manager module.
type Provider struct {
	settings Settings
	manager  *Manager
}

// NewProvider decodes raw settings over the defaults.
func NewProvider(logger *zap.Logger, metrics *monitoring.Metrics, tracer *tracing.Tracer, raw map[string]any) (*Provider, error) {
	settings := DefaultSettings()
	if err := config.Decode(raw, &settings); err != nil {
		return nil, fmt.Errorf("http_manager settings: %w", err)
	}
	if settings.ReadHeaderTimeoutMS <= 0 {
		return nil, fmt.Errorf("http_manager settings: read_header_timeout_ms must be positive")
	}

	d := &driver{settings: settings, tracer: tracer, metrics: metrics}
	return &Provider{
		settings: settings,
		manager: listener.NewManager[*Server]("http", d,
			listener.WithLogger(logger),
			listener.WithMetrics(metrics),
		),
	}, nil
}

func (p *Provider) Module() string                { return ModuleName }
func (p *Provider) Name() string                  { return ProviderName }
func (p *Provider) Services() []module.ServiceKey { return []module.ServiceKey{ManagerService} }
func (p *Provider) Requires() []string            { return nil }

func (p *Provider) Settings() Settings { return p.settings }

func (p *Provider) Prepare(ctx context.Context, b *module.Binder) error {
	return b.Bind(ManagerService, p.manager)
}

// Start binds the configured endpoint.
func (p *Provider) Start(ctx context.Context, m *module.Manager) error {
	_, err := p.manager.CreateIfAbsent(p.settings.Host, p.settings.Port)
	return err
}

// NotifyAfterCompleted serves once every module has attached its routes.
func (p *Provider) NotifyAfterCompleted(ctx context.Context) error {
	return p.manager.StartAll()
}

func (p *Provider) Shutdown(ctx context.Context) error {
	return p.manager.Close(ctx)
}

// Lookup returns the HTTP listener manager of an initialized registry.
func Lookup(m *module.Manager) (*Manager, error) {
	return module.Service[*Manager](m, ModuleName, ManagerService)
}
