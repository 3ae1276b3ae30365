package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for one router. Each Metrics has
// its own registry so tests can build many routers in one process.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	documents   *prometheus.CounterVec
	revocations *prometheus.CounterVec
	wageRecords *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agro_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agro_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		documents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agro_documents_created_total",
				Help: "Documents created, by kind and initial status",
			},
			[]string{"kind", "status"},
		),
		revocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agro_documents_revoked_total",
				Help: "Documents revoked, by kind",
			},
			[]string{"kind"},
		),
		wageRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agro_wage_records_total",
				Help: "Wage records created, by stage",
			},
			[]string{"stage"},
		),
	}

	m.registry.MustRegister(
		m.requests,
		m.latency,
		m.documents,
		m.revocations,
		m.wageRecords,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
