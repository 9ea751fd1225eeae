package service

import (
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry and the application metrics
// exposed on /metrics. A nil *MetricsService is a no-op recorder, so callers
// never need to guard their instrumentation.
type MetricsService struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	cacheDuration prometheus.Histogram

	cleanupJobsProcessed prometheus.Counter
	cleanupJobsFailed    prometheus.Counter

	goroutines prometheus.GaugeFunc
}

// NewMetricsService builds the registry and registers all collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	s := &MetricsService{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests processed, by method, path and status.",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency distribution.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "membership_cache_hits_total",
			Help: "Membership cache lookups served from Redis.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "membership_cache_misses_total",
			Help: "Membership cache lookups that fell through to Postgres.",
		}),
		cacheDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "membership_cache_lookup_duration_seconds",
			Help:    "Latency of membership cache lookups.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}),
		cleanupJobsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cleanup_jobs_processed_total",
			Help: "Cleanup jobs completed by the background queue.",
		}),
		cleanupJobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cleanup_jobs_failed_total",
			Help: "Cleanup job attempts that returned an error.",
		}),
		goroutines: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "goroutines_count",
			Help: "Current number of goroutines.",
		}, func() float64 { return float64(runtime.NumGoroutine()) }),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		s.httpRequestsTotal,
		s.httpRequestDuration,
		s.cacheHits,
		s.cacheMisses,
		s.cacheDuration,
		s.cleanupJobsProcessed,
		s.cleanupJobsFailed,
		s.goroutines,
	)

	return s
}

// Handler exposes the registry as a gin handler.
func (s *MetricsService) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// ObserveHTTPRequest records one completed HTTP request.
func (s *MetricsService) ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	if s == nil {
		return
	}
	s.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	s.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordCacheOperation records one membership cache lookup.
func (s *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if s == nil {
		return
	}
	if hit {
		s.cacheHits.Inc()
	} else {
		s.cacheMisses.Inc()
	}
	s.cacheDuration.Observe(duration.Seconds())
}

// RecordCleanupProcessed counts a cleanup job completed by the queue.
func (s *MetricsService) RecordCleanupProcessed() {
	if s == nil {
		return
	}
	s.cleanupJobsProcessed.Inc()
}

// RecordCleanupFailed counts a cleanup job attempt that errored.
func (s *MetricsService) RecordCleanupFailed() {
	if s == nil {
		return
	}
	s.cleanupJobsFailed.Inc()
}
