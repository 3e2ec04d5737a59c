// Package metrics provides Prometheus metrics for the dirshare server.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirshare_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dirshare_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds, including body streaming",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Delivery metrics
	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirshare_deliveries_total",
			Help: "File deliveries by strategy and outcome",
		},
		[]string{"strategy", "status"},
	)

	bytesServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirshare_bytes_served_total",
			Help: "File body bytes written to clients",
		},
		[]string{"strategy"},
	)

	listingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirshare_listings_total",
			Help: "Directory listings rendered",
		},
		[]string{"status"},
	)

	// Cache metrics
	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirshare_cache_lookups_total",
			Help: "In-memory cache lookups by result",
		},
		[]string{"cache", "result"},
	)

	cacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirshare_cache_evictions_total",
			Help: "Entries evicted from an in-memory cache",
		},
		[]string{"cache"},
	)

	cacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dirshare_cache_entries",
			Help: "Entries currently held by an in-memory cache",
		},
		[]string{"cache"},
	)

	// Admission gate metrics
	gateInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dirshare_gate_in_flight",
			Help: "Requests currently holding an admission slot",
		},
	)

	gateWaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dirshare_gate_waiting",
			Help: "Requests queued for an admission slot",
		},
	)

	gateWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dirshare_gate_wait_seconds",
			Help:    "Time spent waiting for an admission slot",
			Buckets: prometheus.DefBuckets,
		},
	)

	thumbnailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirshare_thumbnails_total",
			Help: "Thumbnail requests by source",
		},
		[]string{"source"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordDelivery records one file delivery and the body bytes it wrote.
func RecordDelivery(strategy string, success bool, bytes int64) {
	status := "success"
	if !success {
		status = "error"
	}
	deliveriesTotal.WithLabelValues(strategy, status).Inc()
	if bytes > 0 {
		bytesServed.WithLabelValues(strategy).Add(float64(bytes))
	}
}

// RecordListing records a rendered (or failed) directory listing.
func RecordListing(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	listingsTotal.WithLabelValues(status).Inc()
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(cache string, hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	cacheLookups.WithLabelValues(cache, result).Inc()
}

// RecordCacheEviction records an evicted cache entry.
func RecordCacheEviction(cache string) {
	cacheEvictions.WithLabelValues(cache).Inc()
}

// SetCacheEntries sets the current entry count of a cache.
func SetCacheEntries(cache string, n int) {
	cacheEntries.WithLabelValues(cache).Set(float64(n))
}

// GateAdmitted moves one request from waiting to in flight.
func GateAdmitted(waited time.Duration) {
	gateWaiting.Dec()
	gateInFlight.Inc()
	gateWait.Observe(waited.Seconds())
}

// GateQueued records a request starting to wait for a slot.
func GateQueued() {
	gateWaiting.Inc()
}

// GateAbandoned records a queued request whose client went away.
func GateAbandoned() {
	gateWaiting.Dec()
}

// GateReleased records a request giving its slot back.
func GateReleased() {
	gateInFlight.Dec()
}

// RecordThumbnail records a thumbnail served from "cache" or "render".
func RecordThumbnail(source string) {
	thumbnailsTotal.WithLabelValues(source).Inc()
}

// Route collapses a URL path to a low-cardinality label.
func Route(path string) string {
	if path == "/" || path == "" {
		return "/"
	}
	seg := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(seg, '/'); i >= 0 {
		seg = seg[:i]
	}
	switch seg {
	case "files", "thumb", "dav", "healthz", "metrics":
		return "/" + seg
	default:
		return "other"
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, Route(r.URL.Path), rw.statusCode, time.Since(start))
	})
}
