package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/apm-collector/internal/api/middleware"
	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/tracing"
)

// Server is a gin engine served by one net/http server. Handlers attach to
// Engine before the module starts serving.
type Server struct {
	Engine *gin.Engine
	http   *http.Server
}

type driver struct {
	settings Settings
	tracer   *tracing.Tracer
	metrics  *monitoring.Metrics
}

func (d *driver) New(host string, port int) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	if d.tracer != nil {
		engine.Use(tracing.HTTPMiddleware(d.tracer))
	}
	engine.Use(monitoring.Middleware(d.metrics))
	engine.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	return &Server{
		Engine: engine,
		http: &http.Server{
			Handler:           engine,
			ReadHeaderTimeout: d.settings.readHeaderTimeout(),
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}
}

func (d *driver) Serve(s *Server, l net.Listener) error {
	err := s.http.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (d *driver) Stop(ctx context.Context, s *Server) error {
	return s.http.Shutdown(ctx)
}
