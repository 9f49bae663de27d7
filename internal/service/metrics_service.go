package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the
// admission subsystem.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec

	seatsReserved       prometheus.Counter
	seatsReleased       prometheus.Counter
	admissionRejections *prometheus.CounterVec
	waitlistPromotions  prometheus.Counter
	waitlistDepth       *prometheus.GaugeVec
}

// NewMetricsService registers core Prometheus collectors.
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
		Help:    "Latency for cache operations",
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

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	seatsReserved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "class_seats_reserved_total",
		Help: "Total seats granted by the admission gate",
	})

	seatsReleased := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "class_seats_released_total",
		Help: "Total seats returned on enrollment drops",
	})

	admissionRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "class_admission_rejections_total",
		Help: "Enrollment requests rejected, by reason",
	}, []string{"reason"})

	waitlistPromotions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "waitlist_promotions_total",
		Help: "Waitlist heads notified after a seat was freed",
	})

	waitlistDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "waitlist_depth",
		Help: "Current waitlist length per class",
	}, []string{"class_id"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		dbQueryDuration, seatsReserved, seatsReleased, admissionRejections, waitlistPromotions, waitlistDepth, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:            registry,
		handler:             handler,
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		cacheLatency:        cacheLatency,
		cacheWrite:          cacheWrite,
		cacheHits:           cacheHits,
		cacheMisses:         cacheMisses,
		dbQueryDuration:     dbQueryDuration,
		seatsReserved:       seatsReserved,
		seatsReleased:       seatsReleased,
		admissionRejections: admissionRejections,
		waitlistPromotions:  waitlistPromotions,
		waitlistDepth:       waitlistDepth,
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordSeatReserved counts a granted admission.
func (m *MetricsService) RecordSeatReserved() {
	if m == nil {
		return
	}
	m.seatsReserved.Inc()
}

// RecordSeatReleased counts a seat returned by a drop.
func (m *MetricsService) RecordSeatReleased() {
	if m == nil {
		return
	}
	m.seatsReleased.Inc()
}

// RecordAdmissionRejection counts a rejected enrollment by reason
// ("full", "duplicate", "invalid").
func (m *MetricsService) RecordAdmissionRejection(reason string) {
	if m == nil {
		return
	}
	m.admissionRejections.WithLabelValues(reason).Inc()
}

// RecordWaitlistPromotion counts a notified waitlist head.
func (m *MetricsService) RecordWaitlistPromotion() {
	if m == nil {
		return
	}
	m.waitlistPromotions.Inc()
}

// SetWaitlistDepth reports the current queue length for a class.
func (m *MetricsService) SetWaitlistDepth(classID string, depth int) {
	if m == nil {
		return
	}
	m.waitlistDepth.WithLabelValues(classID).Set(float64(depth))
}
