package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/config"
	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/logging"
	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/apm-collector/internal/module"
	"github.com/GriffinCanCode/apm-collector/internal/shared/id"
)

// Collector is the process-scoped context: it owns the logger, metrics,
// tracer and module registry, and tears them down in order.
type Collector struct {
	config  *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
	modules *module.Manager

	closeOnce sync.Once
	closeErr  error
}

// New builds every module named in app. Nothing is bound or started yet.
func New(cfg *config.Config, app *config.Application) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewFromLevel(cfg.Logging.Level, cfg.Logging.Development)
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	generator := id.SetDefault(cfg.InstanceID, 0)
	metrics := monitoring.NewMetrics(nil)
	tracer := tracing.New("apm-collector", logger.Component("tracing"), generator)

	c := &Collector{
		config:  cfg,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		modules: module.NewManager(logger.Logger),
	}

	for _, name := range app.Names() {
		mc := app.Modules[name]
		ctor, err := lookup(name, mc.Provider)
		if err != nil {
			c.abort()
			return nil, err
		}
		p, err := ctor(Deps{
			Config:  cfg,
			Logger:  logger.Module(name),
			Metrics: metrics,
			Tracer:  tracer,
		}, mc.Config)
		if err != nil {
			c.abort()
			return nil, fmt.Errorf("module %s: %w", name, err)
		}
		if err := c.modules.Register(p); err != nil {
			c.abort()
			return nil, err
		}
		logger.Debug("Module registered", zap.String("module", name), zap.String("provider", mc.Provider))
	}

	logger.Info("Collector created",
		zap.Int64("instance_id", cfg.InstanceID),
		zap.Strings("modules", app.Names()),
	)
	return c, nil
}

// abort releases what New created before it failed.
func (c *Collector) abort() {
	c.tracer.Close(context.Background())
	c.logger.Sync()
}

// Start initializes every module in dependency order and begins serving.
// On error the caller must still Close.
func (c *Collector) Start(ctx context.Context) error {
	if err := c.modules.Init(ctx); err != nil {
		c.logger.Error("Module initialization failed", zap.Error(err))
		return err
	}
	c.metrics.SetModulesStarted(len(c.modules.Order()))
	c.logger.Info("Collector started", zap.Strings("order", c.modules.Order()))
	return nil
}

// Close shuts modules down in reverse start order: receivers stop
// accepting, workers drain into storage, storage closes, listeners are
// released. Safe to call more than once.
func (c *Collector) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.logger.Info("Shutting down collector")

		var errs []error
		if err := c.modules.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := c.tracer.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close tracer: %w", err))
		}
		c.closeErr = errors.Join(errs...)

		if c.closeErr != nil {
			c.logger.Error("Collector shutdown incomplete", zap.Error(c.closeErr))
		} else {
			c.logger.Info("Collector stopped")
		}
		c.logger.Sync()
	})
	return c.closeErr
}

// Modules returns the module registry.
func (c *Collector) Modules() *module.Manager { return c.modules }

// Metrics returns the collector metrics.
func (c *Collector) Metrics() *monitoring.Metrics { return c.metrics }

// Logger returns the root logger.
func (c *Collector) Logger() *logging.Logger { return c.logger }
