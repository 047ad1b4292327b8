package http

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/apm-collector/internal/module"
	"github.com/GriffinCanCode/apm-collector/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRoutesAttachedDuringStartAreServed(t *testing.T) {
	p, err := NewProvider(nil, monitoring.NewMetrics(nil), nil, map[string]any{"host": "127.0.0.1", "port": 0})
	require.NoError(t, err)

	var addr string
	attach := testutil.NewStaticProvider("echo", nil, nil, ModuleName)
	attach.OnStart = func(ctx context.Context, m *module.Manager) error {
		mgr, err := Lookup(m)
		if err != nil {
			return err
		}
		// same pair as the module's own endpoint, so the handle is shared
		e, err := mgr.CreateIfAbsent(p.Settings().Host, p.Settings().Port)
		if err != nil {
			return err
		}
		e.Server().Engine.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
		addr = e.Addr()
		return nil
	}

	m := module.NewManager(nil)
	require.NoError(t, m.Register(p))
	require.NoError(t, m.Register(attach))
	require.NoError(t, m.Init(context.Background()))
	defer m.Shutdown(context.Background())

	mgr, err := Lookup(m)
	require.NoError(t, err)
	assert.Len(t, mgr.Endpoints(), 1)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + addr + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", string(body))
}

func TestShutdownStopsServing(t *testing.T) {
	p, err := NewProvider(nil, nil, nil, map[string]any{"host": "127.0.0.1", "port": 0})
	require.NoError(t, err)

	m := module.NewManager(nil)
	require.NoError(t, m.Register(p))
	require.NoError(t, m.Init(context.Background()))

	mgr, err := Lookup(m)
	require.NoError(t, err)
	addr := mgr.Endpoints()[0].Addr()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	client := &http.Client{Timeout: time.Second}
	_, err = client.Get("http://" + addr + "/")
	assert.Error(t, err)
}

func TestSettingsValidation(t *testing.T) {
	_, err := NewProvider(nil, nil, nil, map[string]any{"read_header_timeout_ms": 0})
	assert.Error(t, err)

	p, err := NewProvider(nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), p.Settings())
}
