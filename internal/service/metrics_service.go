package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Retrieval strategy labels.
const (
	StrategyGraphQL      = "graphql"
	StrategyRESTFallback = "rest_fallback"
)

// MetricsService encapsulates Prometheus instrumentation for the bridge:
// inbound HTTP traffic, credential lifecycle outcomes and retrieval
// strategy usage. All methods are nil-safe so wiring stays optional.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	tokenAcquires   *prometheus.CounterVec
	tokenRefreshes  *prometheus.CounterVec
	retrievalTotal  *prometheus.CounterVec
	skippedNodes    prometheus.Counter
}

// NewMetricsService registers the bridge's Prometheus collectors.
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

	tokenAcquires := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_token_acquires_total",
		Help: "Authorization-code exchanges by outcome",
	}, []string{"outcome"})

	tokenRefreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_token_refreshes_total",
		Help: "Access token refreshes by outcome",
	}, []string{"outcome"})

	retrievalTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "line_item_retrievals_total",
		Help: "Line item retrievals by winning strategy",
	}, []string{"strategy"})

	skippedNodes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "line_item_skipped_nodes_total",
		Help: "Deals or line items dropped during the REST fallback traversal",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, tokenAcquires, tokenRefreshes, retrievalTotal, skippedNodes, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		tokenAcquires:   tokenAcquires,
		tokenRefreshes:  tokenRefreshes,
		retrievalTotal:  retrievalTotal,
		skippedNodes:    skippedNodes,
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

// RecordTokenAcquire counts an authorization-code exchange outcome.
func (m *MetricsService) RecordTokenAcquire(success bool) {
	if m == nil {
		return
	}
	m.tokenAcquires.WithLabelValues(outcomeLabel(success)).Inc()
}

// RecordTokenRefresh counts a refresh outcome.
func (m *MetricsService) RecordTokenRefresh(success bool) {
	if m == nil {
		return
	}
	m.tokenRefreshes.WithLabelValues(outcomeLabel(success)).Inc()
}

// RecordRetrieval counts which strategy answered a fetch.
func (m *MetricsService) RecordRetrieval(strategy string) {
	if m == nil {
		return
	}
	m.retrievalTotal.WithLabelValues(strategy).Inc()
}

// RecordSkippedNode counts a deal or line item dropped during the
// fallback traversal. Dropped nodes are otherwise invisible to callers.
func (m *MetricsService) RecordSkippedNode() {
	if m == nil {
		return
	}
	m.skippedNodes.Inc()
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
