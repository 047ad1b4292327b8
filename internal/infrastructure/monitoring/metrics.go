package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Route results recorded by RecordRoute.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultStopped  = "stopped"
	ResultInvalid  = "invalid"
)

// Flush stages recorded by RecordFlushError.
const (
	StageGet  = "get"
	StageSave = "save"
)

// Metrics holds all collector Prometheus metrics. Every method is safe on a
// nil receiver so components can run without metrics in tests.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec

	// gRPC metrics
	GRPCCalls    *prometheus.CounterVec
	GRPCDuration *prometheus.HistogramVec

	// Pipeline metrics
	RecordsRouted  *prometheus.CounterVec
	QueueDepth     *prometheus.GaugeVec
	BufferSize     *prometheus.GaugeVec
	FlushDuration  *prometheus.HistogramVec
	FlushErrors    *prometheus.CounterVec
	EntriesSaved   *prometheus.CounterVec
	EntriesDropped *prometheus.CounterVec

	// Listener and module metrics
	Listeners      *prometheus.GaugeVec
	ModulesStarted prometheus.Gauge

	startTime time.Time

	// Snapshot for the health endpoint
	snapshot MetricsSnapshot
	mu       sync.RWMutex
}

// MetricsSnapshot holds running totals for the JSON health endpoint.
type MetricsSnapshot struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalErrors    int64   `json:"total_errors"`
	RecordsRouted  int64   `json:"records_routed"`
	RecordsRefused int64   `json:"records_refused"`
	EntriesSaved   int64   `json:"entries_saved"`
	EntriesDropped int64   `json:"entries_dropped"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// NewMetrics registers collector metrics on reg. A nil reg gets a fresh
// registry, which keeps tests independent of the global default registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collector_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collector_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// gRPC metrics
		GRPCCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_grpc_calls_total",
				Help: "Total number of gRPC calls",
			},
			[]string{"method", "code"},
		),
		GRPCDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collector_grpc_duration_seconds",
				Help:    "gRPC call duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method"},
		),

		// Pipeline metrics
		RecordsRouted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_records_routed_total",
				Help: "Records routed to persistence workers by result",
			},
			[]string{"worker", "result"},
		),
		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "collector_worker_queue_depth",
				Help: "Records waiting in a worker queue",
			},
			[]string{"worker"},
		),
		BufferSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "collector_worker_buffer_entries",
				Help: "Distinct merge keys buffered by a worker",
			},
			[]string{"worker"},
		),
		FlushDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collector_worker_flush_duration_seconds",
				Help:    "Duration of worker flushes in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"worker", "result"},
		),
		FlushErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_worker_flush_errors_total",
				Help: "Storage errors during flush by stage",
			},
			[]string{"worker", "stage"},
		),
		EntriesSaved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_worker_entries_saved_total",
				Help: "Merged entries written to storage",
			},
			[]string{"worker"},
		),
		EntriesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_worker_entries_dropped_total",
				Help: "Entries dropped after exhausting the retry budget",
			},
			[]string{"worker"},
		),

		// Listener and module metrics
		Listeners: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "collector_listeners",
				Help: "Bound listeners by kind",
			},
			[]string{"kind"},
		),
		ModulesStarted: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "collector_modules_started",
				Help: "Number of initialized modules",
			},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "collector_uptime_seconds",
			Help: "Collector uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordGRPCCall records a gRPC call
func (m *Metrics) RecordGRPCCall(method, code string, duration time.Duration) {
	if m == nil {
		return
	}
	m.GRPCCalls.WithLabelValues(method, code).Inc()
	m.GRPCDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordRoute records the outcome of routing one record to worker.
func (m *Metrics) RecordRoute(worker, result string) {
	if m == nil {
		return
	}
	m.RecordsRouted.WithLabelValues(worker, result).Inc()

	m.mu.Lock()
	if result == ResultAccepted {
		m.snapshot.RecordsRouted++
	} else {
		m.snapshot.RecordsRefused++
	}
	m.mu.Unlock()
}

// SetQueueDepth sets the number of queued records of worker.
func (m *Metrics) SetQueueDepth(worker string, depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(worker).Set(float64(depth))
}

// SetBufferSize sets the number of buffered merge keys of worker.
func (m *Metrics) SetBufferSize(worker string, size int) {
	if m == nil {
		return
	}
	m.BufferSize.WithLabelValues(worker).Set(float64(size))
}

// RecordFlushError counts a storage failure at stage.
func (m *Metrics) RecordFlushError(worker, stage string) {
	if m == nil {
		return
	}
	m.FlushErrors.WithLabelValues(worker, stage).Inc()
}

// AddSaved counts entries written to storage.
func (m *Metrics) AddSaved(worker string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.EntriesSaved.WithLabelValues(worker).Add(float64(n))

	m.mu.Lock()
	m.snapshot.EntriesSaved += int64(n)
	m.mu.Unlock()
}

// AddDropped counts entries discarded after the retry budget ran out.
func (m *Metrics) AddDropped(worker string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.EntriesDropped.WithLabelValues(worker).Add(float64(n))

	m.mu.Lock()
	m.snapshot.EntriesDropped += int64(n)
	m.mu.Unlock()
}

// IncListeners counts a newly bound listener of kind.
func (m *Metrics) IncListeners(kind string) {
	if m == nil {
		return
	}
	m.Listeners.WithLabelValues(kind).Inc()
}

// DecListeners removes a closed listener of kind.
func (m *Metrics) DecListeners(kind string) {
	if m == nil {
		return
	}
	m.Listeners.WithLabelValues(kind).Dec()
}

// SetModulesStarted sets the number of initialized modules.
func (m *Metrics) SetModulesStarted(count int) {
	if m == nil {
		return
	}
	m.ModulesStarted.Set(float64(count))
}

// Snapshot returns a copy of the running totals.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.snapshot
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	return snap
}
