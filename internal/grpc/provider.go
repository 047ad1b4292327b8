package grpc

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
	ModuleName   = "grpc_manager"
	ProviderName = "default"

	ManagerService module.ServiceKey = "grpc_manager.manager"
)

// Manager is the listener registry shared by gRPC handlers.
type Manager = listener.Manager[*Server]

// Settings are read from the grpc_manager module's config map.
type Settings struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	MaxRecvMsgSize   int    `yaml:"max_recv_msg_size"`
	KeepaliveTimeS   int    `yaml:"keepalive_time_s"`
	KeepaliveTimeout int    `yaml:"keepalive_timeout_s"`
	Reflection       bool   `yaml:"reflection"`
}

// DefaultSettings listens where agents expect the collector.
func DefaultSettings() Settings {
	return Settings{
		Host:             "0.0.0.0",
		Port:             11800,
		MaxRecvMsgSize:   10 * 1024 * 1024,
		KeepaliveTimeS:   60,
		KeepaliveTimeout: 20,
		Reflection:       true,
	}
}

func (s Settings) keepaliveTime() time.Duration {
	return time.Duration(s.KeepaliveTimeS) * time.Second
}

func (s Settings) keepaliveTimeout() time.Duration {
	return time.Duration(s.KeepaliveTimeout) * time.Second
}

// Provider implements the grpc_manager module.
type Provider struct {
	settings Settings
	logger   *zap.Logger
	manager  *Manager
}

// NewProvider decodes raw settings over the defaults.
func NewProvider(logger *zap.Logger, metrics *monitoring.Metrics, tracer *tracing.Tracer, raw map[string]any) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := DefaultSettings()
	if err := config.Decode(raw, &settings); err != nil {
		return nil, fmt.Errorf("grpc_manager settings: %w", err)
	}
	if settings.MaxRecvMsgSize <= 0 {
		return nil, fmt.Errorf("grpc_manager settings: max_recv_msg_size must be positive")
	}

	d := &driver{settings: settings, tracer: tracer, metrics: metrics}
	return &Provider{
		settings: settings,
		logger:   logger,
		manager: listener.NewManager[*Server]("grpc", d,
			listener.WithLogger(logger),
			listener.WithMetrics(metrics),
		),
	}, nil
}

func (p *Provider) Module() string                { return ModuleName }
func (p *Provider) Name() string                  { return ProviderName }
func (p *Provider) Services() []module.ServiceKey { return []module.ServiceKey{ManagerService} }
func (p *Provider) Requires() []string            { return nil }

// Settings returns the decoded settings.
func (p *Provider) Settings() Settings { return p.settings }

func (p *Provider) Prepare(ctx context.Context, b *module.Binder) error {
	return b.Bind(ManagerService, p.manager)
}

// Start binds the default endpoint so a port conflict fails startup early.
func (p *Provider) Start(ctx context.Context, m *module.Manager) error {
	if _, err := p.manager.CreateIfAbsent(p.settings.Host, p.settings.Port); err != nil {
		return err
	}
	return nil
}

// NotifyAfterCompleted serves once every module has registered its handlers.
func (p *Provider) NotifyAfterCompleted(ctx context.Context) error {
	return p.manager.StartAll()
}

func (p *Provider) Shutdown(ctx context.Context) error {
	return p.manager.Close(ctx)
}

// Lookup returns the gRPC listener manager of an initialized registry.
func Lookup(m *module.Manager) (*Manager, error) {
	return module.Service[*Manager](m, ModuleName, ManagerService)
}
