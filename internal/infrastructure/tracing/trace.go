package tracing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/apm-collector/internal/shared/id"
)

// Propagation headers. gRPC metadata keys are the lower-case forms.
const (
	TraceHeader = "X-Trace-ID"
	SpanHeader  = "X-Span-ID"
)

// SpanID identifies one span within a trace.
type SpanID string

// Span represents a single operation handled by the collector.
type Span struct {
	TraceID    id.DistributedTraceID
	SpanID     SpanID
	ParentID   SpanID
	Name       string
	Service    string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Tags       map[string]string
	Error      error
	StatusCode int
}

// Tracer records spans for requests received by the collector itself.
type Tracer struct {
	service   string
	logger    *zap.Logger
	generator *id.Generator

	mu     sync.RWMutex
	closed bool
	spans  chan *Span
	done   chan struct{}
}

// New creates a tracer. Trace ids for requests without a propagated id come
// from generator, or the process default when generator is nil.
func New(service string, logger *zap.Logger, generator *id.Generator) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if generator == nil {
		generator = id.Default()
	}

	t := &Tracer{
		service:   service,
		logger:    logger.Named("tracing"),
		generator: generator,
		spans:     make(chan *Span, 1000),
		done:      make(chan struct{}),
	}

	go t.collectSpans()

	return t
}

// StartSpan creates a span that continues the trace carried by ctx, or a new
// trace when ctx carries none.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID, ok := TraceIDFromContext(ctx)
	if !ok {
		traceID = t.generator.NewTraceID()
	}
	parentID := GetSpanID(ctx)

	span := &Span{
		TraceID:   traceID,
		SpanID:    SpanID(uuid.NewString()),
		ParentID:  parentID,
		Name:      name,
		Service:   t.service,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
	}

	ctx = context.WithValue(ctx, traceIDKey, traceID)
	ctx = context.WithValue(ctx, spanIDKey, span.SpanID)
	return span, ctx
}

// Finish marks the span as complete
func (s *Span) Finish() {
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

// SetTag adds a tag to the span
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// SetError records an error in the span
func (s *Span) SetError(err error) {
	s.Error = err
}

// SetStatus sets the response status code
func (s *Span) SetStatus(code int) {
	s.StatusCode = code
}

func (t *Tracer) collectSpans() {
	defer close(t.done)
	for span := range t.spans {
		t.processSpan(span)
	}
}

func (t *Tracer) processSpan(span *Span) {
	fields := []zap.Field{
		zap.String("trace_id", span.TraceID.Encode()),
		zap.String("span_id", string(span.SpanID)),
		zap.String("operation", span.Name),
		zap.Duration("duration", span.Duration),
		zap.Int("status", span.StatusCode),
	}
	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", string(span.ParentID)))
	}
	for k, v := range span.Tags {
		fields = append(fields, zap.String(k, v))
	}

	if span.Error != nil {
		fields = append(fields, zap.Error(span.Error))
		t.logger.Warn("span completed with error", fields...)
		return
	}
	t.logger.Debug("span completed", fields...)
}

// Submit hands a finished span to the collector goroutine. Spans are dropped
// when the buffer is full or the tracer is closed.
func (t *Tracer) Submit(span *Span) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return
	}
	select {
	case t.spans <- span:
	default:
		t.logger.Warn("span buffer full, dropping span",
			zap.String("trace_id", span.TraceID.Encode()),
			zap.String("span_id", string(span.SpanID)),
		)
	}
}

// Close stops accepting spans and waits for buffered spans to be logged.
func (t *Tracer) Close(ctx context.Context) error {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.spans)
	}
	t.mu.Unlock()

	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Context keys for trace propagation
type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	spanIDKey  contextKey = "span_id"
)

// withPropagated stores a propagated trace and parent span in ctx. Malformed
// trace ids are ignored so the request starts a fresh trace.
func withPropagated(ctx context.Context, rawTrace, rawSpan string) context.Context {
	if rawTrace != "" {
		if traceID, err := id.PropagatedTraceID(rawTrace); err == nil {
			ctx = context.WithValue(ctx, traceIDKey, traceID)
		}
	}
	if rawSpan != "" {
		ctx = context.WithValue(ctx, spanIDKey, SpanID(rawSpan))
	}
	return ctx
}

// TraceIDFromContext retrieves the trace id from context.
func TraceIDFromContext(ctx context.Context) (id.DistributedTraceID, bool) {
	traceID, ok := ctx.Value(traceIDKey).(id.DistributedTraceID)
	return traceID, ok
}

// GetSpanID retrieves the span ID from context
func GetSpanID(ctx context.Context) SpanID {
	if spanID, ok := ctx.Value(spanIDKey).(SpanID); ok {
		return spanID
	}
	return ""
}

// FormatTrace returns a formatted trace string for logging
func FormatTrace(ctx context.Context) string {
	traceID, _ := TraceIDFromContext(ctx)
	return fmt.Sprintf("[trace:%s span:%s]", traceID.Encode(), GetSpanID(ctx))
}
