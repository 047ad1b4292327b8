// Package storage defines the storage module contract: one persistence DAO
// per entity, looked up through the module registry by service key.
package storage

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/apm-collector/internal/module"
)

// ModuleName is the registry name of the storage module.
const ModuleName = "storage"

// Service keys bound by every storage provider.
const (
	ApplicationReferenceMetricDAO module.ServiceKey = "application_reference_metric_persistence_dao"
	ApplicationMetricDAO          module.ServiceKey = "application_metric_persistence_dao"
	GlobalTraceDAO                module.ServiceKey = "global_trace_persistence_dao"
	SegmentDAO                    module.ServiceKey = "segment_persistence_dao"
)

// Services lists the service keys a storage provider must bind.
func Services() []module.ServiceKey {
	return []module.ServiceKey{
		ApplicationReferenceMetricDAO,
		ApplicationMetricDAO,
		GlobalTraceDAO,
		SegmentDAO,
	}
}

// ErrNotFound is returned by Get when no entry is stored under the key.
var ErrNotFound = errors.New("storage: entry not found")

// Entity is a stored value addressed by its merge key.
type Entity interface {
	Key() string
}

// PersistenceDAO reads and writes one entity type.
type PersistenceDAO[T Entity] interface {
	// Get returns the stored entry for key or ErrNotFound.
	Get(ctx context.Context, key string) (T, error)
	// Save creates or replaces the entry stored under entity.Key().
	Save(ctx context.Context, entity T) error
}
