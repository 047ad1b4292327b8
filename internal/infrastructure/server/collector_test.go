package server

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpmanager "github.com/GriffinCanCode/apm-collector/internal/http"
	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/config"
	"github.com/GriffinCanCode/apm-collector/internal/module"
	"github.com/GriffinCanCode/apm-collector/internal/storage"
	"github.com/GriffinCanCode/apm-collector/internal/storage/table"
)

func quietConfig() *config.Config {
	cfg := config.Default()
	cfg.Logging.Level = "error"
	return cfg
}

// localApplication is the default module set on ephemeral local ports.
func localApplication() *config.Application {
	local := map[string]any{"host": "127.0.0.1", "port": 0}
	app := config.DefaultApplication()
	app.Modules["http_manager"] = config.ModuleConfig{Provider: "default", Config: local}
	app.Modules["grpc_manager"] = config.ModuleConfig{Provider: "default", Config: local}
	app.Modules["telemetry"] = config.ModuleConfig{Provider: "default", Config: local}
	app.Modules["receiver"] = config.ModuleConfig{Provider: "default", Config: map[string]any{
		"http_host": "127.0.0.1", "http_port": 0,
		"grpc_host": "127.0.0.1", "grpc_port": 0,
	}}
	return app
}

func TestCollectorLifecycle(t *testing.T) {
	c, err := New(quietConfig(), localApplication())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	order := c.Modules().Order()
	require.Len(t, order, 6)
	position := make(map[string]int, len(order))
	for i, name := range order {
		position[name] = i
	}
	assert.Less(t, position["storage"], position["analysis_metric"])
	assert.Less(t, position["analysis_metric"], position["receiver"])
	assert.Less(t, position["http_manager"], position["receiver"])
	assert.Less(t, position["grpc_manager"], position["receiver"])
	assert.Less(t, position["http_manager"], position["telemetry"])

	mgr, err := httpmanager.Lookup(c.Modules())
	require.NoError(t, err)
	addr := mgr.Endpoints()[0].Addr()

	resp, err := http.Post("http://"+addr+"/v1/segments", "application/json", strings.NewReader(`[{"segment_id":"seg-1","data_binary":"AQ=="}]`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Close(ctx))
	require.NoError(t, c.Close(ctx))

	// the final flush on shutdown wrote the accepted segment
	dao, err := module.Service[storage.PersistenceDAO[*table.Segment]](c.Modules(), storage.ModuleName, storage.SegmentDAO)
	require.NoError(t, err)
	seg, err := dao.Get(context.Background(), "seg-1")
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, seg.DataBinary)

	assert.Equal(t, int64(1), c.Metrics().Snapshot().EntriesSaved)
}

func TestUnknownModuleOrProvider(t *testing.T) {
	app := &config.Application{Modules: map[string]config.ModuleConfig{
		"storage": {Provider: "cassandra"},
	}}
	_, err := New(quietConfig(), app)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	app = &config.Application{Modules: map[string]config.ModuleConfig{
		"alarm": {Provider: "default"},
	}}
	_, err = New(quietConfig(), app)
	assert.ErrorIs(t, err, ErrUnknownModule)
}

func TestInvalidModuleSettings(t *testing.T) {
	app := &config.Application{Modules: map[string]config.ModuleConfig{
		"storage":         {Provider: "memory"},
		"analysis_metric": {Provider: "default", Config: map[string]any{"backpressure": "drop"}},
	}}
	_, err := New(quietConfig(), app)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis_metric")
}

func TestMissingDependencyFailsStart(t *testing.T) {
	app := &config.Application{Modules: map[string]config.ModuleConfig{
		"analysis_metric": {Provider: "default"},
	}}
	c, err := New(quietConfig(), app)
	require.NoError(t, err)

	err = c.Start(context.Background())
	assert.ErrorIs(t, err, module.ErrMissingDependency)
	assert.NoError(t, c.Close(context.Background()))
}

func TestModulesCatalog(t *testing.T) {
	assert.Equal(t, []string{"analysis_metric", "grpc_manager", "http_manager", "receiver", "storage", "telemetry"}, Modules())

	_, err := lookup("storage", "default")
	assert.NoError(t, err)
	_, err = lookup("storage", "nats")
	assert.NoError(t, err)
}
