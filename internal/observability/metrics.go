// Package observability exposes Prometheus metrics for the fan-out layer.
package observability

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for Chatwire. Each instance carries
// its own registry so tests can construct metrics freely.
type Metrics struct {
	registry *prometheus.Registry

	// Realtime metrics
	realtimeConnections   prometheus.Gauge
	realtimeMessagesTotal *prometheus.CounterVec
	realtimePublishTotal  *prometheus.CounterVec
	realtimeErrorsTotal   *prometheus.CounterVec

	// Presence metrics
	presenceRefreshTotal prometheus.Counter

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		realtimeConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatwire_realtime_connections",
				Help: "Current number of open event stream connections",
			},
		),
		realtimeMessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatwire_realtime_messages_total",
				Help: "Total number of envelopes written to event streams",
			},
			[]string{"type"},
		),
		realtimePublishTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatwire_realtime_publish_total",
				Help: "Total number of events published to the broker",
			},
			[]string{"type"},
		),
		realtimeErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatwire_realtime_errors_total",
				Help: "Total number of fan-out errors",
			},
			[]string{"reason"},
		),
		presenceRefreshTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "chatwire_presence_refresh_total",
				Help: "Total number of presence TTL refreshes",
			},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatwire_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}
}

// SetRealtimeConnections updates the open connection gauge.
func (m *Metrics) SetRealtimeConnections(n int) {
	m.realtimeConnections.Set(float64(n))
}

// RecordRealtimeMessage counts an envelope written to a stream.
func (m *Metrics) RecordRealtimeMessage(eventType string) {
	m.realtimeMessagesTotal.WithLabelValues(eventType).Inc()
}

// RecordRealtimePublish counts an event accepted by the broker.
func (m *Metrics) RecordRealtimePublish(eventType string) {
	m.realtimePublishTotal.WithLabelValues(eventType).Inc()
}

// RecordRealtimeError counts a fan-out error by reason.
func (m *Metrics) RecordRealtimeError(reason string) {
	m.realtimeErrorsTotal.WithLabelValues(reason).Inc()
}

// RecordPresenceRefresh counts a presence TTL refresh.
func (m *Metrics) RecordPresenceRefresh() {
	m.presenceRefreshTotal.Inc()
}

// RecordHTTPRequest counts a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// Handler returns a Fiber handler serving the metrics endpoint.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
