package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/GriffinCanCode/apm-collector/internal/shared/id"
)

func newTestTracer(t *testing.T) *Tracer {
	t.Helper()
	tracer := New("collector", zap.NewNop(), id.NewGenerator(9, 1))
	t.Cleanup(func() { _ = tracer.Close(context.Background()) })
	return tracer
}

func TestHTTPMiddlewarePropagation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer := newTestTracer(t)

	var seen id.DistributedTraceID
	router := gin.New()
	router.Use(HTTPMiddleware(tracer))
	router.POST("/v1/segments", func(c *gin.Context) {
		seen, _ = TraceIDFromContext(c.Request.Context())
		c.Status(http.StatusAccepted)
	})

	tests := []struct {
		name       string
		header     string
		propagated bool
	}{
		{name: "propagated", header: "1.2.3", propagated: true},
		{name: "absent", header: ""},
		{name: "malformed", header: "not-a-trace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/segments", nil)
			if tt.header != "" {
				req.Header.Set(TraceHeader, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, http.StatusAccepted, w.Code)
			assert.Equal(t, seen.Encode(), w.Header().Get(TraceHeader))
			assert.NotEmpty(t, w.Header().Get(SpanHeader))

			if tt.propagated {
				assert.Equal(t, tt.header, seen.Encode())
			} else {
				assert.Equal(t, int64(9), seen.ID().Parts()[0], "fresh ids come from the tracer generator")
			}
		})
	}
}

func TestGRPCUnaryInterceptorPropagation(t *testing.T) {
	tracer := newTestTracer(t)
	interceptor := GRPCUnaryInterceptor(tracer)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-trace-id", "4.5.6", "x-span-id", "parent"))
	info := &grpc.UnaryServerInfo{FullMethod: "/collector.Receiver/Collect"}

	var traceID id.DistributedTraceID
	var parent SpanID
	_, err := interceptor(ctx, nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		traceID, _ = TraceIDFromContext(ctx)
		parent = GetSpanID(ctx)
		return nil, nil
	})
	require.NoError(t, err)

	assert.Equal(t, "4.5.6", traceID.Encode())
	assert.NotEqual(t, SpanID("parent"), parent, "handler sees its own span")
	assert.NotEmpty(t, parent)
}

func TestStartSpanNested(t *testing.T) {
	tracer := newTestTracer(t)

	outer, ctx := tracer.StartSpan(context.Background(), "outer")
	inner, _ := tracer.StartSpan(ctx, "inner")

	assert.True(t, outer.TraceID.Equal(inner.TraceID))
	assert.Equal(t, outer.SpanID, inner.ParentID)
	assert.Contains(t, FormatTrace(ctx), outer.TraceID.Encode())
}

func TestCloseDrainsAndIgnoresLateSpans(t *testing.T) {
	tracer := New("collector", zap.NewNop(), nil)

	span, _ := tracer.StartSpan(context.Background(), "flush")
	span.Finish()
	tracer.Submit(span)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tracer.Close(ctx))
	require.NoError(t, tracer.Close(ctx))

	assert.NotPanics(t, func() { tracer.Submit(span) })
}
