package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// PlansConfirmed counts successful draft confirmations
	PlansConfirmed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "plans_confirmed_total", Help: "Plans confirmed."},
	)
	// DraftSaves counts draft create-or-replace operations
	DraftSaves = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "draft_saves_total", Help: "Draft upserts."},
	)
	// RouteComputations counts route requests by outcome
	RouteComputations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "route_computations_total", Help: "Route computations by outcome."},
		[]string{"outcome"},
	)
	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors to the package registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(PlansConfirmed)
		Registry.MustRegister(DraftSaves)
		Registry.MustRegister(RouteComputations)
		Registry.MustRegister(WebhookDeliveries)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
