package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Panel metrics
	PanelsActive prometheus.Gauge
	PanelsTotal  prometheus.Counter
	Renders      *prometheus.CounterVec
	Commits      *prometheus.CounterVec
	ParseErrors  prometheus.Counter

	// Lifecycle operation metrics
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Resource loader metrics
	ResourceLoads        *prometheus.CounterVec
	ResourceLoadDuration *prometheus.HistogramVec
	BreakerTransitions   *prometheus.CounterVec

	// Hook metrics
	HookInvocations *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
	stop      chan struct{}
	stopOnce  sync.Once

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	ActivePanels      int64   `json:"active_panels"`
	ActiveConnections int64   `json:"active_connections"`
	Renders           int64   `json:"renders"`
	ParseErrors       int64   `json:"parse_errors"`
	ResourceLoads     int64   `json:"resource_loads"`
	HookErrors        int64   `json:"hook_errors"`
	TotalDuration     float64 `json:"total_duration"` // sum of all request durations
	RequestCount      int64   `json:"request_count"`  // count for averaging
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector on the default registry
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates a metrics collector on reg
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),
		stop:      make(chan struct{}),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "divpanel_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "divpanel_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "divpanel_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 7),
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "divpanel_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 7),
			},
			[]string{"method", "path"},
		),

		// Panel metrics
		PanelsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "divpanel_panels_active",
				Help: "Number of open panel sessions",
			},
		),
		PanelsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "divpanel_panels_total",
				Help: "Total number of panel sessions opened",
			},
		),
		Renders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "divpanel_renders_total",
				Help: "Total number of panel renders",
			},
			[]string{"mode", "mount"},
		),
		Commits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "divpanel_commits_total",
				Help: "Total number of content commits",
			},
			[]string{"status"},
		),
		ParseErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "divpanel_parse_errors_total",
				Help: "Total number of component source parse errors",
			},
		),

		// Lifecycle operation metrics
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "divpanel_operations_total",
				Help: "Total number of lifecycle operations",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "divpanel_operation_duration_seconds",
				Help:    "Lifecycle operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		// Resource loader metrics
		ResourceLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "divpanel_resource_loads_total",
				Help: "Total number of resource loads",
			},
			[]string{"kind", "status"},
		),
		ResourceLoadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "divpanel_resource_load_duration_seconds",
				Help:    "Resource load duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		BreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "divpanel_origin_breaker_transitions_total",
				Help: "Total number of fetch origin circuit transitions",
			},
			[]string{"to"},
		),

		// Hook metrics
		HookInvocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "divpanel_hook_invocations_total",
				Help: "Total number of lifecycle hook invocations",
			},
			[]string{"hook", "status"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "divpanel_ws_connections_active",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "divpanel_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		// System metrics
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "divpanel_uptime_seconds",
				Help: "Server uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime updates the uptime metric until Stop is called
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Uptime.Set(time.Since(m.startTime).Seconds())
		case <-m.stop:
			return
		}
	}
}

// Stop ends the uptime updater
func (m *Metrics) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordOperation records a lifecycle operation
func (m *Metrics) RecordOperation(operation, status string, duration time.Duration) {
	m.Operations.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRender records a render by content mode and mount kind
func (m *Metrics) RecordRender(mode, mount string) {
	m.Renders.WithLabelValues(mode, mount).Inc()
	m.mu.Lock()
	m.snapshot.Renders++
	m.mu.Unlock()
}

// RecordCommit records a content commit
func (m *Metrics) RecordCommit(status string) {
	m.Commits.WithLabelValues(status).Inc()
}

// IncParseErrors increments the parse error counter
func (m *Metrics) IncParseErrors() {
	m.ParseErrors.Inc()
	m.mu.Lock()
	m.snapshot.ParseErrors++
	m.mu.Unlock()
}

// RecordResourceLoad records one loader operation
func (m *Metrics) RecordResourceLoad(kind, status string, duration time.Duration) {
	m.ResourceLoads.WithLabelValues(kind, status).Inc()
	m.ResourceLoadDuration.WithLabelValues(kind).Observe(duration.Seconds())
	m.mu.Lock()
	m.snapshot.ResourceLoads++
	m.mu.Unlock()
}

// RecordBreakerTransition records a fetch origin circuit entering state to
func (m *Metrics) RecordBreakerTransition(to string) {
	m.BreakerTransitions.WithLabelValues(to).Inc()
}

// RecordHook records a lifecycle hook invocation
func (m *Metrics) RecordHook(hook, status string) {
	m.HookInvocations.WithLabelValues(hook, status).Inc()
	if status == "error" {
		m.mu.Lock()
		m.snapshot.HookErrors++
		m.mu.Unlock()
	}
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// SetPanelsActive sets the number of open panels
func (m *Metrics) SetPanelsActive(count int) {
	m.PanelsActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActivePanels = int64(count)
	m.mu.Unlock()
}

// IncPanelsTotal increments the opened panels counter
func (m *Metrics) IncPanelsTotal() {
	m.PanelsTotal.Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// GetSnapshot returns current values for the JSON API
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.snapshot
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	return snap
}
