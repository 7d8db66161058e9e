// Package telemetry provides a Prometheus-backed implementation of the
// plugin package's Metrics interface.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AerafalDev/Qosmos/plugin"
)

// Collector wraps Prometheus metrics for the plugin lifecycle subsystem. It
// owns its own registry so embedding hosts can mount it under any path
// without colliding with the default global registry.
type Collector struct {
	registry *prometheus.Registry

	resolutionOutcomes *prometheus.CounterVec
	candidateCounts    *prometheus.HistogramVec
	lifecycleEvents    *prometheus.CounterVec
	liveInstances      prometheus.Gauge
}

// NewCollector creates a Collector with its own Prometheus registry and
// registers every metric vector on it.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	resolutionOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plugin_resolution_outcomes_total",
		Help: "Total dependency resolution attempts by outcome (ok, failed).",
	}, []string{"outcome"})

	candidateCounts := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plugin_resolution_candidate_count",
		Help:    "Number of candidates involved in a resolution attempt.",
		Buckets: prometheus.LinearBuckets(0, 5, 10),
	}, []string{"outcome"})

	lifecycleEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plugin_lifecycle_transitions_total",
		Help: "Total lifecycle stage transitions by plugin, stage, and outcome.",
	}, []string{"plugin", "stage", "outcome"})

	liveInstances := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "plugin_live_instances",
		Help: "Current number of live plugin instances.",
	})

	reg.MustRegister(resolutionOutcomes, candidateCounts, lifecycleEvents, liveInstances)

	return &Collector{
		registry:           reg,
		resolutionOutcomes: resolutionOutcomes,
		candidateCounts:    candidateCounts,
		lifecycleEvents:    lifecycleEvents,
		liveInstances:      liveInstances,
	}
}

// Handler serves the collector's registry in the Prometheus exposition
// format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ResolutionOutcome implements plugin.Metrics.
func (c *Collector) ResolutionOutcome(outcome string, candidateCount int) {
	c.resolutionOutcomes.WithLabelValues(outcome).Inc()
	c.candidateCounts.WithLabelValues(outcome).Observe(float64(candidateCount))
}

// LifecycleTransition implements plugin.Metrics.
func (c *Collector) LifecycleTransition(id plugin.Identifier, stage string, outcome string) {
	c.lifecycleEvents.WithLabelValues(id.String(), stage, outcome).Inc()
}

// LiveInstanceCount implements plugin.Metrics.
func (c *Collector) LiveInstanceCount(n int) {
	c.liveInstances.Set(float64(n))
}
