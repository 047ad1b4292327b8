package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/apm-collector/internal/analysis"
	"github.com/GriffinCanCode/apm-collector/internal/storage/table"
	"github.com/GriffinCanCode/apm-collector/internal/worker"
)

// Router is the ingestion boundary: hand one record to one worker.
type Router interface {
	Route(ctx context.Context, id worker.ID, record any) error
}

// IngestResponse is the body of every ingestion response.
type IngestResponse struct {
	Accepted int    `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// Handlers decode agent reports and route them to persistence workers.
type Handlers struct {
	router   Router
	logger   *zap.Logger
	maxBatch int
	closed   atomic.Bool
}

// NewHandlers creates ingestion handlers. Batches larger than maxBatch
// records are refused.
func NewHandlers(router Router, logger *zap.Logger, maxBatch int) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{router: router, logger: logger, maxBatch: maxBatch}
}

// Close makes every handler answer 503 from now on.
func (h *Handlers) Close() { h.closed.Store(true) }

// Register attaches the ingestion routes to g.
func (h *Handlers) Register(g gin.IRoutes) {
	g.POST("/metrics/application-reference", h.ApplicationReferenceMetrics)
	g.POST("/metrics/application", h.ApplicationMetrics)
	g.POST("/traces/global", h.GlobalTraces)
	g.POST("/segments", h.Segments)
}

func (h *Handlers) ApplicationReferenceMetrics(c *gin.Context) {
	ingest(h, c, analysis.ApplicationReferenceMetricPersistenceWorkerID, func(m *table.ApplicationReferenceMetric) error {
		return validateMetric(m.TimeBucket, m.Metric)
	})
}

func (h *Handlers) ApplicationMetrics(c *gin.Context) {
	ingest(h, c, analysis.ApplicationMetricPersistenceWorkerID, func(m *table.ApplicationMetric) error {
		return validateMetric(m.TimeBucket, m.Metric)
	})
}

func (h *Handlers) GlobalTraces(c *gin.Context) {
	ingest(h, c, analysis.GlobalTracePersistenceWorkerID, func(g *table.GlobalTrace) error {
		if g.SegmentID == "" {
			return errors.New("segment_id is required")
		}
		if g.GlobalTraceID.IsZero() {
			return errors.New("global_trace_id is required")
		}
		return nil
	})
}

func (h *Handlers) Segments(c *gin.Context) {
	ingest(h, c, analysis.SegmentPersistenceWorkerID, func(s *table.Segment) error {
		if s.SegmentID == "" {
			return errors.New("segment_id is required")
		}
		return nil
	})
}

func validateMetric(timeBucket int64, m table.Metric) error {
	if timeBucket <= 0 {
		return errors.New("time_bucket is required")
	}
	if m.Calls < 0 || m.ErrorCalls < 0 || m.DurationSum < 0 {
		return errors.New("counters cannot be negative")
	}
	if m.ErrorCalls > m.Calls {
		return errors.New("error_calls exceeds calls")
	}
	return nil
}

// ingest decodes a JSON array of *T, validates every record, then routes
// them in order. The whole batch is validated before anything is routed,
// so a malformed batch has no effect.
func ingest[T any](h *Handlers, c *gin.Context, id worker.ID, validate func(*T) error) {
	if h.closed.Load() {
		c.JSON(http.StatusServiceUnavailable, IngestResponse{Error: "receiver is shutting down"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, IngestResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, IngestResponse{Error: "read body: " + err.Error()})
		return
	}

	var records []*T
	if err := sonic.Unmarshal(body, &records); err != nil {
		c.JSON(http.StatusBadRequest, IngestResponse{Error: "decode body: " + err.Error()})
		return
	}
	if h.maxBatch > 0 && len(records) > h.maxBatch {
		c.JSON(http.StatusRequestEntityTooLarge, IngestResponse{Error: fmt.Sprintf("batch of %d exceeds limit %d", len(records), h.maxBatch)})
		return
	}
	for i, rec := range records {
		if rec == nil {
			c.JSON(http.StatusBadRequest, IngestResponse{Error: fmt.Sprintf("record %d is null", i)})
			return
		}
		if err := validate(rec); err != nil {
			c.JSON(http.StatusBadRequest, IngestResponse{Error: fmt.Sprintf("record %d: %v", i, err)})
			return
		}
	}

	for i, rec := range records {
		if err := h.router.Route(c.Request.Context(), id, rec); err != nil {
			status := routeStatus(err)
			h.logger.Warn("Routing failed",
				zap.Int("worker_id", int(id)),
				zap.Int("accepted", i),
				zap.Int("batch", len(records)),
				zap.Error(err),
			)
			c.JSON(status, IngestResponse{Accepted: i, Error: err.Error()})
			return
		}
	}

	c.JSON(http.StatusAccepted, IngestResponse{Accepted: len(records)})
}

func routeStatus(err error) int {
	switch {
	case errors.Is(err, worker.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, worker.ErrWorkerStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
