package grpc

import (
	"context"
	"errors"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/tracing"
)

// Server is a gRPC server together with its health service.
type Server struct {
	*grpc.Server
	Health *health.Server
}

// SetServing marks service as SERVING in the health service.
func (s *Server) SetServing(service string) {
	s.Health.SetServingStatus(service, healthpb.HealthCheckResponse_SERVING)
}

// SetNotServing marks service as NOT_SERVING.
func (s *Server) SetNotServing(service string) {
	s.Health.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
}

// driver builds servers with the collector's interceptors.
type driver struct {
	settings Settings
	tracer   *tracing.Tracer
	metrics  *monitoring.Metrics
}

func (d *driver) New(host string, port int) *Server {
	opts := []grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    d.settings.keepaliveTime(),
			Timeout: d.settings.keepaliveTimeout(),
		}),
		// agents ping on idle connections; allow it without counting as abuse
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             30 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.MaxRecvMsgSize(d.settings.MaxRecvMsgSize),
	}

	unary := []grpc.UnaryServerInterceptor{monitoring.UnaryServerInterceptor(d.metrics)}
	if d.tracer != nil {
		unary = append([]grpc.UnaryServerInterceptor{tracing.GRPCUnaryInterceptor(d.tracer)}, unary...)
		opts = append(opts, grpc.ChainStreamInterceptor(tracing.GRPCStreamInterceptor(d.tracer)))
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(unary...))

	s := &Server{
		Server: grpc.NewServer(opts...),
		Health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(s.Server, s.Health)
	if d.settings.Reflection {
		reflection.Register(s.Server)
	}
	return s
}

func (d *driver) Serve(s *Server, l net.Listener) error {
	err := s.Server.Serve(l)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Stop drains in-flight calls, forcing the stop when ctx ends first.
func (d *driver) Stop(ctx context.Context, s *Server) error {
	s.Health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.Server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.Server.Stop()
		<-done
		return ctx.Err()
	}
}
