package http

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/apm-collector/internal/analysis"
	"github.com/GriffinCanCode/apm-collector/internal/api/middleware"
	"github.com/GriffinCanCode/apm-collector/internal/grpc"
	httpmanager "github.com/GriffinCanCode/apm-collector/internal/http"
	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/config"
	"github.com/GriffinCanCode/apm-collector/internal/module"
)

const (
	ReceiverModule = "receiver"
	ProviderName   = "default"

	// HealthService is the gRPC health entry of the receiver.
	HealthService = "collector.receiver"
)

// ReceiverSettings are read from the receiver module's config map.
type ReceiverSettings struct {
	HTTPHost     string `yaml:"http_host"`
	HTTPPort     int    `yaml:"http_port"`
	GRPCHost     string `yaml:"grpc_host"`
	GRPCPort     int    `yaml:"grpc_port"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
	MaxBatch     int    `yaml:"max_batch"`
	RateLimit    int    `yaml:"rate_limit_rps"`
	RateBurst    int    `yaml:"rate_limit_burst"`
}

// DefaultReceiverSettings shares the default endpoints of the listener
// modules.
func DefaultReceiverSettings() ReceiverSettings {
	httpDefaults := httpmanager.DefaultSettings()
	grpcDefaults := grpc.DefaultSettings()
	rate := middleware.DefaultRateLimitConfig()
	return ReceiverSettings{
		HTTPHost:     httpDefaults.Host,
		HTTPPort:     httpDefaults.Port,
		GRPCHost:     grpcDefaults.Host,
		GRPCPort:     grpcDefaults.Port,
		MaxBodyBytes: 32 << 20,
		MaxBatch:     10000,
		RateLimit:    rate.RequestsPerSecond,
		RateBurst:    rate.Burst,
	}
}

// Receiver implements the receiver module: JSON ingestion over the shared
// HTTP listener. On the shared gRPC listener it only publishes its health
// status; reports are not accepted over gRPC.
type Receiver struct {
	settings ReceiverSettings
	logger   *zap.Logger
	handlers *Handlers
	grpc     *grpc.Server
}

// NewReceiver decodes raw settings over the defaults.
func NewReceiver(logger *zap.Logger, raw map[string]any) (*Receiver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := DefaultReceiverSettings()
	if err := config.Decode(raw, &settings); err != nil {
		return nil, fmt.Errorf("receiver settings: %w", err)
	}
	if settings.RateLimit < 0 || settings.RateBurst < 0 {
		return nil, fmt.Errorf("receiver settings: rate limit cannot be negative")
	}
	return &Receiver{settings: settings, logger: logger.Named("receiver")}, nil
}

func (r *Receiver) Module() string                { return ReceiverModule }
func (r *Receiver) Name() string                  { return ProviderName }
func (r *Receiver) Services() []module.ServiceKey { return nil }

func (r *Receiver) Requires() []string {
	return []string{analysis.ModuleName, httpmanager.ModuleName, grpc.ModuleName}
}

func (r *Receiver) Prepare(ctx context.Context, b *module.Binder) error { return nil }

// Start attaches the ingestion routes and reports the receiver healthy on
// the gRPC endpoint.
func (r *Receiver) Start(ctx context.Context, m *module.Manager) error {
	router, err := analysis.Lookup(m)
	if err != nil {
		return err
	}
	httpManager, err := httpmanager.Lookup(m)
	if err != nil {
		return err
	}
	grpcManager, err := grpc.Lookup(m)
	if err != nil {
		return err
	}

	he, err := httpManager.CreateIfAbsent(r.settings.HTTPHost, r.settings.HTTPPort)
	if err != nil {
		return err
	}
	ge, err := grpcManager.CreateIfAbsent(r.settings.GRPCHost, r.settings.GRPCPort)
	if err != nil {
		return err
	}

	r.handlers = NewHandlers(router, r.logger, r.settings.MaxBatch)
	group := he.Server().Engine.Group("/v1")
	group.Use(middleware.DecompressRequest(r.settings.MaxBodyBytes))
	if r.settings.RateLimit > 0 {
		rate := middleware.DefaultRateLimitConfig()
		rate.RequestsPerSecond = r.settings.RateLimit
		rate.Burst = r.settings.RateBurst
		group.Use(middleware.RateLimit(rate))
	}
	r.handlers.Register(group)

	r.grpc = ge.Server()
	r.grpc.SetServing(HealthService)

	r.logger.Info("Receiver attached",
		zap.String("http", he.Addr()),
		zap.String("grpc", ge.Addr()),
	)
	return nil
}

// Shutdown stops accepting reports. Workers drain afterwards, when the
// analysis module shuts down.
func (r *Receiver) Shutdown(ctx context.Context) error {
	if r.handlers != nil {
		r.handlers.Close()
	}
	if r.grpc != nil {
		r.grpc.SetNotServing(HealthService)
	}
	return nil
}
