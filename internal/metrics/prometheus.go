package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upsert outcomes
const (
	OutcomeCreated     = "created"
	OutcomeUpdated     = "updated"
	OutcomeConflict    = "conflict"
	OutcomeUnavailable = "unavailable"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Tenant store metrics
	UpsertsTotal      *prometheus.CounterVec
	VersionConflicts  prometheus.Counter
	StoreOpDuration   *prometheus.HistogramVec
	AdminUpdatesTotal *prometheus.CounterVec

	// Side effects
	NotificationsTotal *prometheus.CounterVec
	IndexWritesTotal   *prometheus.CounterVec

	// Turn resolution
	TurnsTotal *prometheus.CounterVec
}

// New creates the metrics on a private registry that also carries the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantbridge_http_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),

		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tenantbridge_http_request_duration_seconds",
				Help:    "Duration of HTTP request processing",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		UpsertsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantbridge_tenant_upserts_total",
				Help: "Tenant upserts by outcome",
			},
			[]string{"outcome"},
		),

		VersionConflicts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tenantbridge_tenant_version_conflicts_total",
				Help: "Conditional tenant writes rejected because of a stale etag",
			},
		),

		StoreOpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tenantbridge_store_operation_duration_seconds",
				Help:    "Duration of tenant store calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		AdminUpdatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantbridge_admin_updates_total",
				Help: "Administrative tenant updates by result",
			},
			[]string{"result"},
		),

		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantbridge_notifications_total",
				Help: "New-tenant notifications by result",
			},
			[]string{"result"},
		),

		IndexWritesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantbridge_index_writes_total",
				Help: "Secondary index writes by kind and result",
			},
			[]string{"kind", "result"},
		),

		TurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantbridge_turns_total",
				Help: "Resolved message turns by credential source",
			},
			[]string{"source", "degraded"},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
