package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counterpart of the OTLP pipeline. The scrape endpoint is always
// on, the OTLP exporters are opt-in, so a plain single-instance deployment
// still gets request metrics without a collector.
var (
	promRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timberline_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	promRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "timberline_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// PrometheusHandler serves the scrape endpoint.
func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// PrometheusMiddleware records request count and duration into the default registry.
func PrometheusMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(ww, r)

		rctx := chi.RouteContext(r.Context())
		route := r.URL.Path
		if rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		promRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.statusCode)).Inc()
		promRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
