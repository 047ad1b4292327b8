package analysis

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/apm-collector/internal/storage"
	"github.com/GriffinCanCode/apm-collector/internal/storage/table"
	"github.com/GriffinCanCode/apm-collector/internal/worker"
)

// Worker ids. Agents and receivers address workers by these values, so
// they never change.
const (
	ApplicationReferenceMetricPersistenceWorkerID worker.ID = iota + 1
	ApplicationMetricPersistenceWorkerID
	GlobalTracePersistenceWorkerID
	SegmentPersistenceWorkerID
)

// Factories returns the factory of every persistence worker.
func Factories(logger *zap.Logger, metrics *monitoring.Metrics) []worker.Factory {
	return []worker.Factory{
		worker.PersistenceFactory[*table.ApplicationReferenceMetric]{
			WorkerID:   ApplicationReferenceMetricPersistenceWorkerID,
			WorkerName: "application_reference_metric",
			Mode:       worker.ModeMerge,
			DAOKey:     storage.ApplicationReferenceMetricDAO,
			Logger:     logger,
			Metrics:    metrics,
		},
		worker.PersistenceFactory[*table.ApplicationMetric]{
			WorkerID:   ApplicationMetricPersistenceWorkerID,
			WorkerName: "application_metric",
			Mode:       worker.ModeMerge,
			DAOKey:     storage.ApplicationMetricDAO,
			Logger:     logger,
			Metrics:    metrics,
		},
		worker.PersistenceFactory[*table.GlobalTrace]{
			WorkerID:   GlobalTracePersistenceWorkerID,
			WorkerName: "global_trace",
			Mode:       worker.ModeOverwrite,
			DAOKey:     storage.GlobalTraceDAO,
			Logger:     logger,
			Metrics:    metrics,
		},
		worker.PersistenceFactory[*table.Segment]{
			WorkerID:   SegmentPersistenceWorkerID,
			WorkerName: "segment",
			Mode:       worker.ModeOverwrite,
			DAOKey:     storage.SegmentDAO,
			Logger:     logger,
			Metrics:    metrics,
		},
	}
}
