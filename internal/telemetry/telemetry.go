// Package telemetry unifies OpenTelemetry tracing and Prometheus metrics.
package telemetry

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// --- CUSTOM METRIC DEFINITIONS ---

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	trackingEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsite_tracking_events_total",
			Help: "Tracking events seen by the dispatcher, labeled by type and outcome.",
		},
		[]string{"event_type", "outcome"},
	)

	sinkDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsite_sink_deliveries_total",
			Help: "Sink deliveries, labeled by sink and outcome.",
		},
		[]string{"sink", "outcome"},
	)

	sinkDeliveryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadsite_sink_delivery_duration_seconds",
			Help:    "Histogram of sink delivery latencies, labeled by sink.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"sink"},
	)

	leadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsite_leads_total",
			Help: "Lead submissions, labeled by form kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	sitemapEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "leadsite_sitemap_entries",
			Help: "Entries in the last generated sitemap, labeled by bucket.",
		},
		[]string{"bucket"},
	)

	sitemapExclusions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadsite_sitemap_exclusions",
			Help: "Catalog elements excluded from the last generated sitemap.",
		},
	)

	rateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsite_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter, labeled by route.",
		},
		[]string{"route"},
	)

	conversionsForwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsite_conversions_forwarded_total",
			Help: "Conversions API forwards, labeled by outcome.",
		},
		[]string{"outcome"},
	)
)

// --- HTTP HANDLER & MIDDLEWARE ---

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}
		ObserveHTTPRequest(r.Method, routePattern, ww.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// InjectHeaders writes the trace context of ctx into outbound headers.
func InjectHeaders(ctx context.Context, h http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
}

// --- HELPER FUNCTIONS ---

// ObserveHTTPRequest records metrics for an HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveTrackingEvent counts a dispatcher decision (accepted, throttled, dropped).
func ObserveTrackingEvent(eventType, outcome string) {
	trackingEventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// ObserveSinkDelivery records one sink call.
func ObserveSinkDelivery(sink, outcome string, duration time.Duration) {
	sinkDeliveriesTotal.WithLabelValues(sink, outcome).Inc()
	sinkDeliveryDurationSeconds.WithLabelValues(sink).Observe(duration.Seconds())
}

// ObserveLead counts a lead submission.
func ObserveLead(kind, outcome string) {
	leadsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveSitemap records the size of a freshly generated sitemap.
func ObserveSitemap(byBucket map[string]int, excluded int) {
	for bucket, n := range byBucket {
		sitemapEntries.WithLabelValues(bucket).Set(float64(n))
	}
	sitemapExclusions.Set(float64(excluded))
}

// ObserveRateLimited counts a request rejected by the rate limiter.
func ObserveRateLimited(route string) {
	rateLimitedTotal.WithLabelValues(route).Inc()
}

// ObserveConversionForward counts a conversions API forward.
func ObserveConversionForward(outcome string) {
	conversionsForwardedTotal.WithLabelValues(outcome).Inc()
}
