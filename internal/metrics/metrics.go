// Package metrics provides Prometheus metrics for the object store.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the object store.
type Metrics struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Store metrics
	StoresTotal *prometheus.CounterVec

	// Storage metrics
	StorageOperations *prometheus.CounterVec
	StorageLatency    *prometheus.HistogramVec
	StorageErrors     *prometheus.CounterVec

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
	CacheSize   *prometheus.GaugeVec

	// Auth metrics
	AuthAttempts *prometheus.CounterVec
	AuthFailures *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	// Request metrics
	m.RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objectstore_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "objectstore_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "objectstore_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Store metrics
	m.StoresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objectstore_stores_total",
			Help: "Total number of object stores by outcome",
		},
		[]string{"outcome"},
	)

	// Storage metrics
	m.StorageOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objectstore_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation"},
	)

	m.StorageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "objectstore_storage_latency_seconds",
			Help:    "Storage operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	m.StorageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objectstore_storage_errors_total",
			Help: "Total number of storage errors",
		},
		[]string{"operation"},
	)

	// Cache metrics
	m.CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objectstore_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	m.CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objectstore_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	m.CacheSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "objectstore_cache_size",
			Help: "Current cache size",
		},
		[]string{"cache"},
	)

	// Auth metrics
	m.AuthAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objectstore_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"source"},
	)

	m.AuthFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objectstore_auth_failures_total",
			Help: "Total number of authentication failures",
		},
		[]string{"reason"},
	)

	// Register all collectors
	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.StoresTotal,
		m.StorageOperations,
		m.StorageLatency,
		m.StorageErrors,
		m.CacheHits,
		m.CacheMisses,
		m.CacheSize,
		m.AuthAttempts,
		m.AuthFailures,
	)

	// Also register the default collectors (go runtime, process info)
	m.registry.MustRegister(prometheus.NewGoCollector())
	m.registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Middleware returns HTTP middleware that records request metrics.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip metrics endpoint itself
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		m.RequestsInFlight.Inc()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		m.RequestsInFlight.Dec()
		duration := time.Since(start).Seconds()

		// Normalize path for metrics (avoid high cardinality)
		path := normalizePath(r.URL.Path)

		m.RequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath collapses namespace and object segments into placeholders
// so each namespace does not become its own label value.
func normalizePath(path string) string {
	const prefix = "/svc/v1/"
	if !strings.HasPrefix(path, prefix) {
		return path
	}
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return prefix
	}
	segs := strings.Split(rest, "/")

	switch segs[0] {
	case "mappings":
		return prefix + "mappings"
	case "store", "retrieve", "delete", "query", "clear":
		return prefix + segs[0] + placeholderPath(segs[1:])
	case "tags":
		if len(segs) > 1 && (segs[1] == "get" || segs[1] == "add" || segs[1] == "remove") {
			return prefix + "tags/" + segs[1] + placeholderPath(segs[2:])
		}
		return prefix + "tags" + placeholderPath(segs[1:])
	}
	return strings.TrimSuffix(prefix, "/") + placeholderPath(segs)
}

// placeholderPath renders up to three trailing path segments as
// placeholders.
func placeholderPath(segs []string) string {
	names := []string{"/{ns}", "/{object_id}", "/{prop}"}
	out := ""
	for i := range segs {
		if i >= len(names) {
			break
		}
		out += names[i]
	}
	return out
}

// RecordStore records a content-dedup store outcome.
func (m *Metrics) RecordStore(newVersion bool) {
	outcome := "deduplicated"
	if newVersion {
		outcome = "new_revision"
	}
	m.StoresTotal.WithLabelValues(outcome).Inc()
}

// RecordStorageOperation records a storage operation.
func (m *Metrics) RecordStorageOperation(operation string, duration time.Duration, err error) {
	m.StorageOperations.WithLabelValues(operation).Inc()
	m.StorageLatency.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.StorageErrors.WithLabelValues(operation).Inc()
	}
}

// RecordCacheAccess records a cache access.
func (m *Metrics) RecordCacheAccess(cache string, hit bool) {
	if hit {
		m.CacheHits.WithLabelValues(cache).Inc()
	} else {
		m.CacheMisses.WithLabelValues(cache).Inc()
	}
}

// UpdateCacheSize updates the cache size.
func (m *Metrics) UpdateCacheSize(cache string, size float64) {
	m.CacheSize.WithLabelValues(cache).Set(size)
}

// RecordAuthAttempt records an authentication attempt.
func (m *Metrics) RecordAuthAttempt(source string, success bool, reason string) {
	m.AuthAttempts.WithLabelValues(source).Inc()
	if !success {
		m.AuthFailures.WithLabelValues(reason).Inc()
	}
}
