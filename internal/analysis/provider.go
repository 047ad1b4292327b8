package analysis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/config"
	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/apm-collector/internal/module"
	"github.com/GriffinCanCode/apm-collector/internal/storage"
	"github.com/GriffinCanCode/apm-collector/internal/worker"
)

const (
	ModuleName   = "analysis_metric"
	ProviderName = "default"

	RouterService module.ServiceKey = "analysis_metric.router"
)

// Settings tune every persistence worker of the module.
type Settings struct {
	QueueSize       int    `yaml:"queue_size"`
	FlushIntervalMS int    `yaml:"flush_interval_ms"`
	FlushThreshold  int    `yaml:"flush_threshold"`
	RetryBudget     int    `yaml:"retry_budget"`
	DAOTimeoutMS    int    `yaml:"dao_timeout_ms"`
	Backpressure    string `yaml:"backpressure"`
}

// SettingsFromPipeline converts the process-wide pipeline defaults.
func SettingsFromPipeline(p config.PipelineConfig) Settings {
	return Settings{
		QueueSize:       p.QueueSize,
		FlushIntervalMS: int(p.FlushInterval / time.Millisecond),
		FlushThreshold:  p.FlushThreshold,
		RetryBudget:     p.RetryBudget,
		DAOTimeoutMS:    int(p.DAOTimeout / time.Millisecond),
		Backpressure:    p.Backpressure,
	}
}

// Options validates the settings and converts them to worker options.
func (s Settings) Options() (worker.Options, error) {
	policy, err := worker.ParsePolicy(s.Backpressure)
	if err != nil {
		return worker.Options{}, err
	}
	for name, v := range map[string]int{
		"queue_size":        s.QueueSize,
		"flush_interval_ms": s.FlushIntervalMS,
		"flush_threshold":   s.FlushThreshold,
		"retry_budget":      s.RetryBudget,
		"dao_timeout_ms":    s.DAOTimeoutMS,
	} {
		if v <= 0 {
			return worker.Options{}, fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	return worker.Options{
		QueueSize:      s.QueueSize,
		FlushInterval:  time.Duration(s.FlushIntervalMS) * time.Millisecond,
		FlushThreshold: s.FlushThreshold,
		RetryBudget:    s.RetryBudget,
		DAOTimeout:     time.Duration(s.DAOTimeoutMS) * time.Millisecond,
		Policy:         policy,
	}, nil
}

// Provider implements the analysis_metric module. It owns the worker
// router and every persistence worker.
type Provider struct {
	logger    *zap.Logger
	opts      worker.Options
	router    *worker.Router
	factories []worker.Factory
}

// NewProvider decodes raw over the pipeline defaults.
func NewProvider(logger *zap.Logger, metrics *monitoring.Metrics, defaults config.PipelineConfig, raw map[string]any) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := SettingsFromPipeline(defaults)
	if err := config.Decode(raw, &settings); err != nil {
		return nil, fmt.Errorf("analysis_metric settings: %w", err)
	}
	opts, err := settings.Options()
	if err != nil {
		return nil, fmt.Errorf("analysis_metric settings: %w", err)
	}

	return &Provider{
		logger:    logger.Named("analysis"),
		opts:      opts,
		router:    worker.NewRouter(logger, metrics),
		factories: Factories(logger, metrics),
	}, nil
}

func (p *Provider) Module() string                { return ModuleName }
func (p *Provider) Name() string                  { return ProviderName }
func (p *Provider) Services() []module.ServiceKey { return []module.ServiceKey{RouterService} }
func (p *Provider) Requires() []string            { return []string{storage.ModuleName} }

func (p *Provider) Prepare(ctx context.Context, b *module.Binder) error {
	return b.Bind(RouterService, p.router)
}

// Start builds every worker against the storage module and starts them.
func (p *Provider) Start(ctx context.Context, m *module.Manager) error {
	for _, f := range p.factories {
		w, err := f.Create(m, p.opts)
		if err != nil {
			return err
		}
		if err := p.router.Register(w); err != nil {
			return err
		}
	}
	p.router.Start()
	return nil
}

// Shutdown drains every worker so accepted records reach storage.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.router.Stop(ctx)
}

// Lookup returns the worker router of an initialized registry.
func Lookup(m *module.Manager) (*worker.Router, error) {
	return module.Service[*worker.Router](m, ModuleName, RouterService)
}
