// Package metrics exposes the gateway's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's collectors. One instance is created at startup
// and shared by the API layer.
type Metrics struct {
	registry *prometheus.Registry

	AuthorizeTotal *prometheus.CounterVec
	RevokeTotal    *prometheus.CounterVec
	ValidateTotal  *prometheus.CounterVec
	VerifyDuration prometheus.Histogram
}

// New creates and registers the gateway collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		AuthorizeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quorumgate",
			Name:      "authorize_total",
			Help:      "Authorization attempts by outcome.",
		}, []string{"outcome"}),
		RevokeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quorumgate",
			Name:      "revoke_total",
			Help:      "Revocation attempts by outcome.",
		}, []string{"outcome"}),
		ValidateTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quorumgate",
			Name:      "signature_validate_total",
			Help:      "Signature validation queries by outcome.",
		}, []string{"outcome"}),
		VerifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quorumgate",
			Name:      "authorize_duration_seconds",
			Help:      "End-to-end duration of authorize calls.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(m.AuthorizeTotal, m.RevokeTotal, m.ValidateTotal, m.VerifyDuration)
	return m
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
