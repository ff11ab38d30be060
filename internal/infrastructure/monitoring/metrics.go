package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so components can be built without a registry in tests.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Worker metrics
	WorkerStarts      prometheus.Counter
	WorkerExits       *prometheus.CounterVec
	WorkerOutputLines *prometheus.CounterVec
	TelemetrySent     prometheus.Counter
	TelemetryDropped  *prometheus.CounterVec

	// Bridge metrics
	CapabilityCalls *prometheus.CounterVec

	// Extension metrics
	Injections    *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	Cycles        prometheus.Counter

	// Sandbox metrics
	ConsoleLines *prometheus.CounterVec
	WaitGiveUps  prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the status API
type Snapshot struct {
	TotalRequests    int64   `json:"total_requests"`
	TelemetrySent    int64   `json:"telemetry_sent"`
	TelemetryDropped int64   `json:"telemetry_dropped"`
	Injected         int64   `json:"injected"`
	InjectFailed     int64   `json:"inject_failed"`
	Cycles           int64   `json:"cycles"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector on its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{registry: reg, startTime: time.Now()}
	f := promauto.With(reg)

	// HTTP metrics
	m.RequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modhost_http_requests_total",
			Help: "Total number of control server requests",
		},
		[]string{"method", "path", "status"},
	)
	m.RequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modhost_http_request_duration_seconds",
			Help:    "Control server request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Worker metrics
	m.WorkerStarts = f.NewCounter(prometheus.CounterOpts{
		Name: "modhost_worker_starts_total",
		Help: "Total number of worker spawns",
	})
	m.WorkerExits = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modhost_worker_exits_total",
			Help: "Total number of worker exits by reason",
		},
		[]string{"reason"},
	)
	m.WorkerOutputLines = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modhost_worker_output_lines_total",
			Help: "Worker output lines captured by stream",
		},
		[]string{"stream"},
	)
	m.TelemetrySent = f.NewCounter(prometheus.CounterOpts{
		Name: "modhost_telemetry_sent_total",
		Help: "Telemetry events written to the worker",
	})
	m.TelemetryDropped = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modhost_telemetry_dropped_total",
			Help: "Telemetry events dropped by reason",
		},
		[]string{"reason"},
	)

	// Bridge metrics
	m.CapabilityCalls = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modhost_capability_calls_total",
			Help: "Capability bridge calls by capability and result",
		},
		[]string{"capability", "result"},
	)

	// Extension metrics
	m.Injections = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modhost_extension_injections_total",
			Help: "Extension module injections by status",
		},
		[]string{"status"},
	)
	m.CycleDuration = f.NewHistogram(prometheus.HistogramOpts{
		Name:    "modhost_extension_cycle_duration_seconds",
		Help:    "Duration of one content-load injection cycle",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	})
	m.Cycles = f.NewCounter(prometheus.CounterOpts{
		Name: "modhost_extension_cycles_total",
		Help: "Content-load injection cycles started",
	})

	// Sandbox metrics
	m.ConsoleLines = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modhost_console_lines_total",
			Help: "Page console lines by level",
		},
		[]string{"level"},
	)
	m.WaitGiveUps = f.NewCounter(prometheus.CounterOpts{
		Name: "modhost_waitfor_giveups_total",
		Help: "document.waitFor polls that exhausted their attempts",
	})

	// WebSocket metrics
	m.WSConnections = f.NewGauge(prometheus.GaugeOpts{
		Name: "modhost_ws_connections",
		Help: "Number of open diagnostic stream connections",
	})

	// System metrics
	f.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "modhost_uptime_seconds",
			Help: "Host uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns the exposition handler for this registry
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records a control server request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.mu.Unlock()
}

// IncWorkerStarts records a worker spawn
func (m *Metrics) IncWorkerStarts() {
	if m == nil {
		return
	}
	m.WorkerStarts.Inc()
}

// RecordWorkerExit records a worker exit ("stopped", "exited", "failed")
func (m *Metrics) RecordWorkerExit(reason string) {
	if m == nil {
		return
	}
	m.WorkerExits.WithLabelValues(reason).Inc()
}

// RecordWorkerLine records one captured worker output line
func (m *Metrics) RecordWorkerLine(stream string) {
	if m == nil {
		return
	}
	m.WorkerOutputLines.WithLabelValues(stream).Inc()
}

// RecordTelemetry records the outcome of one send
func (m *Metrics) RecordTelemetry(sent bool, reason string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	if sent {
		m.snapshot.TelemetrySent++
	} else {
		m.snapshot.TelemetryDropped++
	}
	m.mu.Unlock()

	if sent {
		m.TelemetrySent.Inc()
		return
	}
	m.TelemetryDropped.WithLabelValues(reason).Inc()
}

// RecordCapabilityCall records one bridge invocation
func (m *Metrics) RecordCapabilityCall(capability, result string) {
	if m == nil {
		return
	}
	m.CapabilityCalls.WithLabelValues(capability, result).Inc()
}

// RecordInjection records one module's final status
func (m *Metrics) RecordInjection(status string) {
	if m == nil {
		return
	}
	m.Injections.WithLabelValues(status).Inc()

	m.mu.Lock()
	switch status {
	case "injected":
		m.snapshot.Injected++
	case "failed":
		m.snapshot.InjectFailed++
	}
	m.mu.Unlock()
}

// RecordCycle records a finished injection cycle
func (m *Metrics) RecordCycle(duration time.Duration) {
	if m == nil {
		return
	}
	m.Cycles.Inc()
	m.CycleDuration.Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.Cycles++
	m.mu.Unlock()
}

// RecordConsoleLine records one page console line
func (m *Metrics) RecordConsoleLine(level string) {
	if m == nil {
		return
	}
	m.ConsoleLines.WithLabelValues(level).Inc()
}

// IncWaitGiveUps records a waitFor give-up
func (m *Metrics) IncWaitGiveUps() {
	if m == nil {
		return
	}
	m.WaitGiveUps.Inc()
}

// IncWSConnections increments diagnostic stream connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements diagnostic stream connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// Snapshot returns the current values for the status API
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	s := m.snapshot
	m.mu.RUnlock()

	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
