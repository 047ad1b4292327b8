package monitoring

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		reqSize := c.Request.ContentLength
		if reqSize < 0 {
			reqSize = 0
		}

		c.Next()

		// route template keeps label cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		metrics.RecordHTTPRequest(method, path, status, time.Since(start), reqSize)
	}
}

// UnaryServerInterceptor records gRPC call counts and latency.
func UnaryServerInterceptor(metrics *Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		metrics.RecordGRPCCall(info.FullMethod, status.Code(err).String(), time.Since(start))
		return resp, err
	}
}

// Timer measures one worker flush.
type Timer struct {
	start   time.Time
	metrics *Metrics
	worker  string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, worker string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		worker:  worker,
	}
}

// Stop stops the timer and records the duration under result.
func (t *Timer) Stop(result string) time.Duration {
	duration := time.Since(t.start)
	if t.metrics != nil {
		t.metrics.FlushDuration.WithLabelValues(t.worker, result).Observe(duration.Seconds())
	}
	return duration
}
