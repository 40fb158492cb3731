package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API. A nil
// *MetricsService is valid and records nothing.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	lookupDuration  *prometheus.HistogramVec
	filterDuration  *prometheus.HistogramVec
	filterResults   *prometheus.HistogramVec
	filterRequests  *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	lookupDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "student_lookup_duration_seconds",
		Help:    "Duration of storage lookups issued by the student query composer",
		Buckets: prometheus.DefBuckets,
	}, []string{"lookup"})

	filterDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "student_filter_duration_seconds",
		Help:    "End-to-end duration of student filter queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"strategy", "cache"})

	filterResults := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "student_filter_results",
		Help:    "Number of students returned by filter queries",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	}, []string{"strategy"})

	filterRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "student_filter_requests_total",
		Help: "HTTP requests served by student filter routes",
	}, []string{"path", "strategy", "status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		lookupDuration, filterDuration, filterResults, filterRequests, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		lookupDuration:  lookupDuration,
		filterDuration:  filterDuration,
		filterResults:   filterResults,
		filterRequests:  filterRequests,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveFilterRequest counts a request to a student filter route by strategy.
func (m *MetricsService) ObserveFilterRequest(path, strategy string, status int) {
	if m == nil {
		return
	}
	m.filterRequests.WithLabelValues(path, strategy, strconv.Itoa(status)).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveLookup records the duration of one storage lookup.
func (m *MetricsService) ObserveLookup(lookup string, duration time.Duration) {
	if m == nil {
		return
	}
	m.lookupDuration.WithLabelValues(lookup).Observe(duration.Seconds())
}

// ObserveFilter records a completed filter query.
func (m *MetricsService) ObserveFilter(strategy string, cacheHit bool, results int, duration time.Duration) {
	if m == nil {
		return
	}
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	m.filterDuration.WithLabelValues(strategy, cache).Observe(duration.Seconds())
	m.filterResults.WithLabelValues(strategy).Observe(float64(results))
}
