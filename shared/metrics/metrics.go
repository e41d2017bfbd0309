package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HttpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// ScansTotal counts completed scan runs by outcome: completed, error,
	// skipped, interrupted (matches catalog.ScanStatus).
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sptnr_scans_total",
		Help: "Total number of album scans by outcome",
	}, []string{"status"})

	// ExternalAPICallsTotal is labelled by client name (popularity,
	// scrobbles, metadata_a, metadata_b) and outcome (ok, api_error,
	// connectivity_error, rate_limited). It is registered, but no code in
	// this module increments it.
	ExternalAPICallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sptnr_external_api_calls_total",
		Help: "Total external API calls by client and outcome",
	}, []string{"client", "outcome"})

	// ExternalAPILatency is a per-client latency histogram. It is
	// registered, but no code in this module records observations to it.
	ExternalAPILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sptnr_external_api_latency_seconds",
		Help:    "External API call latency by client",
		Buckets: prometheus.DefBuckets,
	}, []string{"client"})

	// RateLimiterSkipsTotal counts calls withheld by the rate limiter
	// before ever reaching the network, by client and reason (the pipeline
	// records "quota_exhausted" whenever WaitIfNeeded declines a call).
	RateLimiterSkipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sptnr_rate_limiter_skips_total",
		Help: "Calls withheld by the rate limiter by client and reason",
	}, []string{"client", "reason"})
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{w, http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		path := r.URL.Path // In production we'd want to normalize this to avoid high cardinality

		HttpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
		HttpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}
