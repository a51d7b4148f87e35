package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Mount sources
const (
	SourceFilesystem = "filesystem"
	SourceVirtual    = "virtual"
	SourceStream     = "stream"
)

// Persist outcomes
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeCanceled = "canceled"
	OutcomeError    = "error"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Tree metrics
	TreesBuilt    *prometheus.CounterVec
	TreeDuration  *prometheus.HistogramVec
	TreeFiles     *prometheus.HistogramVec
	TreeFolders   *prometheus.HistogramVec
	ScopeAcquired *prometheus.CounterVec

	// Persist metrics
	PersistTotal    *prometheus.CounterVec
	PersistDuration prometheus.Histogram
	PersistedBytes  prometheus.Counter
	PersistFlushes  prometheus.Counter

	// Service metrics
	ServiceCalls    *prometheus.CounterVec
	ServiceDuration *prometheus.HistogramVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the JSON health endpoint
type Snapshot struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalErrors    int64   `json:"total_errors"`
	TreesBuilt     int64   `json:"trees_built"`
	FilesPersisted int64   `json:"files_persisted"`
	BytesPersisted int64   `json:"bytes_persisted"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector registered with reg. A nil reg uses the default
// Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entityfs_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "entityfs_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "entityfs_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Tree metrics
		TreesBuilt: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entityfs_trees_built_total",
				Help: "Total number of folder trees built",
			},
			[]string{"source", "status"},
		),
		TreeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "entityfs_tree_build_duration_seconds",
				Help:    "Tree build duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 30},
			},
			[]string{"source"},
		),
		TreeFiles: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "entityfs_tree_files",
				Help:    "Number of files in built trees",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
			[]string{"source"},
		),
		TreeFolders: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "entityfs_tree_folders",
				Help:    "Number of folders in built trees",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"source"},
		),
		ScopeAcquired: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entityfs_scope_acquisitions_total",
				Help: "Total number of security scope acquisitions",
			},
			[]string{"status"},
		),

		// Persist metrics
		PersistTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entityfs_persist_total",
				Help: "Total number of persist operations by outcome",
			},
			[]string{"outcome"},
		),
		PersistDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "entityfs_persist_duration_seconds",
				Help:    "Persist duration in seconds",
				Buckets: []float64{.001, .01, .1, .5, 1, 5, 15, 60, 300},
			},
		),
		PersistedBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "entityfs_persisted_bytes_total",
				Help: "Total number of bytes written by the persister",
			},
		),
		PersistFlushes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "entityfs_persist_flushes_total",
				Help: "Total number of intermediate flush and sync calls",
			},
		),

		// Service metrics
		ServiceCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entityfs_service_calls_total",
				Help: "Total number of service calls",
			},
			[]string{"service", "method", "status"},
		),
		ServiceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "entityfs_service_duration_seconds",
				Help:    "Service call duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"service", "method"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "entityfs_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordTree records a tree build from source. files and folders are ignored on failure.
func (m *Metrics) RecordTree(source string, err error, duration time.Duration, files, folders int) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.TreesBuilt.WithLabelValues(source, status).Inc()
	m.TreeDuration.WithLabelValues(source).Observe(duration.Seconds())
	if err != nil {
		return
	}
	m.TreeFiles.WithLabelValues(source).Observe(float64(files))
	m.TreeFolders.WithLabelValues(source).Observe(float64(folders))

	m.mu.Lock()
	m.snapshot.TreesBuilt++
	m.mu.Unlock()
}

// RecordScope records a security scope acquisition attempt
func (m *Metrics) RecordScope(err error) {
	if m == nil {
		return
	}
	status := "granted"
	if err != nil {
		status = "denied"
	}
	m.ScopeAcquired.WithLabelValues(status).Inc()
}

// RecordPersist records a finished persist operation
func (m *Metrics) RecordPersist(outcome string, written int64, duration time.Duration) {
	if m == nil {
		return
	}
	m.PersistTotal.WithLabelValues(outcome).Inc()
	m.PersistDuration.Observe(duration.Seconds())
	if outcome != OutcomeOK {
		return
	}
	m.PersistedBytes.Add(float64(written))

	m.mu.Lock()
	m.snapshot.FilesPersisted++
	m.snapshot.BytesPersisted += written
	m.mu.Unlock()
}

// IncFlushes counts an intermediate flush and sync of a destination file
func (m *Metrics) IncFlushes() {
	if m == nil {
		return
	}
	m.PersistFlushes.Inc()
}

// RecordServiceCall records a service call
func (m *Metrics) RecordServiceCall(service, method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ServiceCalls.WithLabelValues(service, method, status).Inc()
	m.ServiceDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

// GetSnapshot returns a copy of the current values
func (m *Metrics) GetSnapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
