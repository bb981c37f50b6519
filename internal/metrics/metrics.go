// Package metrics exposes Prometheus collectors for access decisions and
// relay outcomes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mailrelay"

// Metrics holds the collectors of one process on a private registry.
type Metrics struct {
	registry     *prometheus.Registry
	decisions    *prometheus.CounterVec
	sends        *prometheus.CounterVec
	sendDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_decisions_total",
			Help:      "Access gate decisions by outcome and reason.",
		}, []string{"outcome", "reason"}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_total",
			Help:      "Relay attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		sendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Duration of relay attempts.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.decisions,
		m.sends,
		m.sendDuration,
	)
	return m
}

// ObserveDecision counts one access gate decision.
func (m *Metrics) ObserveDecision(allowed bool, reason string) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.decisions.WithLabelValues(outcome, reason).Inc()
}

// ObserveSend counts one relay attempt and records its duration.
func (m *Metrics) ObserveSend(provider, outcome string, elapsed time.Duration) {
	m.sends.WithLabelValues(provider, outcome).Inc()
	m.sendDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
