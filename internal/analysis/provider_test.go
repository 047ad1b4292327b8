package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/config"
	"github.com/GriffinCanCode/apm-collector/internal/module"
	"github.com/GriffinCanCode/apm-collector/internal/shared/id"
	"github.com/GriffinCanCode/apm-collector/internal/storage/memory"
	"github.com/GriffinCanCode/apm-collector/internal/storage/table"
	"github.com/GriffinCanCode/apm-collector/internal/worker"
)

func newProvider(t *testing.T, raw map[string]any) *Provider {
	t.Helper()
	p, err := NewProvider(nil, nil, config.Default().Pipeline, raw)
	require.NoError(t, err)
	return p
}

func TestPipelineEndToEnd(t *testing.T) {
	store := memory.NewProvider(nil)
	m := module.NewManager(nil)
	require.NoError(t, m.Register(newProvider(t, nil)))
	require.NoError(t, m.Register(store))
	require.NoError(t, m.Init(context.Background()))

	assert.Equal(t, []string{"storage", ModuleName}, m.Order())

	router, err := Lookup(m)
	require.NoError(t, err)
	assert.Equal(t, []worker.ID{
		ApplicationReferenceMetricPersistenceWorkerID,
		ApplicationMetricPersistenceWorkerID,
		GlobalTracePersistenceWorkerID,
		SegmentPersistenceWorkerID,
	}, router.IDs())

	ctx := context.Background()
	ref := &table.ApplicationReferenceMetric{TimeBucket: 201711031407, FrontApplicationID: 2, BehindApplicationID: 3, Metric: table.Metric{Calls: 1, DurationSum: 10, MinDuration: 10, MaxDuration: 10}}
	require.NoError(t, router.Route(ctx, ApplicationReferenceMetricPersistenceWorkerID, ref))
	require.NoError(t, router.Route(ctx, ApplicationReferenceMetricPersistenceWorkerID, ref))

	traceID, err := id.PropagatedTraceID("1.2.3")
	require.NoError(t, err)
	require.NoError(t, router.Route(ctx, GlobalTracePersistenceWorkerID, &table.GlobalTrace{SegmentID: "seg", GlobalTraceID: traceID}))
	require.NoError(t, router.Route(ctx, SegmentPersistenceWorkerID, &table.Segment{SegmentID: "seg", DataBinary: []byte{1}}))

	// a record sent to the wrong worker is refused
	assert.ErrorIs(t, router.Route(ctx, ApplicationMetricPersistenceWorkerID, ref), worker.ErrRecordType)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(shutdownCtx))

	got, err := store.ApplicationReferenceMetrics.Get(ctx, ref.Key())
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Calls)
	assert.Equal(t, 1, store.GlobalTraces.Len())
	assert.Equal(t, 1, store.Segments.Len())
	assert.Equal(t, 0, store.ApplicationMetrics.Len())

	assert.ErrorIs(t, router.Route(ctx, SegmentPersistenceWorkerID, &table.Segment{SegmentID: "late"}), worker.ErrWorkerStopped)
}

func TestRequiresStorage(t *testing.T) {
	m := module.NewManager(nil)
	require.NoError(t, m.Register(newProvider(t, nil)))

	err := m.Init(context.Background())
	assert.ErrorIs(t, err, module.ErrMissingDependency)
}

func TestSettingsOverrideDefaults(t *testing.T) {
	p := newProvider(t, map[string]any{
		"queue_size":        16,
		"flush_interval_ms": 250,
		"backpressure":      "reject",
	})
	assert.Equal(t, 16, p.opts.QueueSize)
	assert.Equal(t, 250*time.Millisecond, p.opts.FlushInterval)
	assert.Equal(t, worker.PolicyReject, p.opts.Policy)
	assert.Equal(t, 2048, p.opts.FlushThreshold)
	assert.Equal(t, 3*time.Second, p.opts.DAOTimeout)
}

func TestInvalidSettings(t *testing.T) {
	for _, raw := range []map[string]any{
		{"queue_size": 0},
		{"retry_budget": -1},
		{"backpressure": "drop"},
	} {
		_, err := NewProvider(nil, nil, config.Default().Pipeline, raw)
		assert.Error(t, err, "%v", raw)
	}
}
