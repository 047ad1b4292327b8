// Package memory is the in-process storage provider. Data lives only as long
// as the collector process.
package memory

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/apm-collector/internal/module"
	"github.com/GriffinCanCode/apm-collector/internal/storage"
	"github.com/GriffinCanCode/apm-collector/internal/storage/table"
)

// ProviderName selects this provider in the application file.
const ProviderName = "memory"

// DAO is a mutex guarded map of entities keyed by merge key.
type DAO[T storage.Entity] struct {
	mu      sync.RWMutex
	entries map[string]T
}

// NewDAO creates an empty DAO.
func NewDAO[T storage.Entity]() *DAO[T] {
	return &DAO[T]{entries: make(map[string]T)}
}

func (d *DAO[T]) Get(ctx context.Context, key string) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	entity, ok := d.entries[key]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return entity, nil
}

func (d *DAO[T]) Save(ctx context.Context, entity T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries[entity.Key()] = entity
	return nil
}

// Len returns the number of stored entries.
func (d *DAO[T]) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Provider implements the storage module with in-memory DAOs.
type Provider struct {
	logger *zap.Logger

	ApplicationReferenceMetrics *DAO[*table.ApplicationReferenceMetric]
	ApplicationMetrics          *DAO[*table.ApplicationMetric]
	GlobalTraces                *DAO[*table.GlobalTrace]
	Segments                    *DAO[*table.Segment]
}

// NewProvider creates the provider with empty DAOs.
func NewProvider(logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		logger:                      logger,
		ApplicationReferenceMetrics: NewDAO[*table.ApplicationReferenceMetric](),
		ApplicationMetrics:          NewDAO[*table.ApplicationMetric](),
		GlobalTraces:                NewDAO[*table.GlobalTrace](),
		Segments:                    NewDAO[*table.Segment](),
	}
}

func (p *Provider) Module() string                { return storage.ModuleName }
func (p *Provider) Name() string                  { return ProviderName }
func (p *Provider) Services() []module.ServiceKey { return storage.Services() }
func (p *Provider) Requires() []string            { return nil }

func (p *Provider) Prepare(ctx context.Context, b *module.Binder) error {
	bindings := map[module.ServiceKey]any{
		storage.ApplicationReferenceMetricDAO: storage.PersistenceDAO[*table.ApplicationReferenceMetric](p.ApplicationReferenceMetrics),
		storage.ApplicationMetricDAO:          storage.PersistenceDAO[*table.ApplicationMetric](p.ApplicationMetrics),
		storage.GlobalTraceDAO:                storage.PersistenceDAO[*table.GlobalTrace](p.GlobalTraces),
		storage.SegmentDAO:                    storage.PersistenceDAO[*table.Segment](p.Segments),
	}
	for key, dao := range bindings {
		if err := b.Bind(key, dao); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) Start(ctx context.Context, m *module.Manager) error {
	p.logger.Info("In-memory storage ready")
	return nil
}

func (p *Provider) Shutdown(ctx context.Context) error {
	p.logger.Info("In-memory storage closed",
		zap.Int("application_reference_metrics", p.ApplicationReferenceMetrics.Len()),
		zap.Int("application_metrics", p.ApplicationMetrics.Len()),
		zap.Int("global_traces", p.GlobalTraces.Len()),
		zap.Int("segments", p.Segments.Len()),
	)
	return nil
}
