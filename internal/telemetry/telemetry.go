// Package telemetry exposes Prometheus metrics for the engine and
// knowledge graph.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters and gauges the engine and graph report
// into. Construct one per process with NewMetrics; promauto registers
// each collector against the default registry.
type Metrics struct {
	// MessagesProcessed/MessagesDropped/MaintenanceRuns mirror running
	// totals already kept by the engine and graph (Engine.Processed/
	// Engine.Dropped/Graph.MaintenanceRuns), which are the monotonic
	// source of truth; Sample sets rather than adds so repeated scrapes
	// don't double-count.
	MessagesProcessed prometheus.Gauge
	MessagesDropped   prometheus.Gauge
	ActiveActors      prometheus.Gauge
	ConceptCount      prometheus.Gauge
	MaintenanceRuns   prometheus.Gauge
}

// NewMetrics registers and returns the full metric set.
func NewMetrics() *Metrics {
	return &Metrics{
		MessagesProcessed: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cortex_messages_processed_total",
			Help: "Total number of actor messages successfully dispatched.",
		}),
		MessagesDropped: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cortex_messages_dropped_total",
			Help: "Total number of messages rejected because the target mailbox was full.",
		}),
		ActiveActors: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cortex_active_actors",
			Help: "Number of actors currently registered with the engine.",
		}),
		ConceptCount: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cortex_concept_count",
			Help: "Number of concepts currently tracked by the knowledge graph.",
		}),
		MaintenanceRuns: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cortex_maintenance_runs_total",
			Help: "Total number of completed RunMaintenance sweeps.",
		}),
	}
}

// Sample pulls current values from engine/graph accessors into the
// gauges. Called on an interval by cmd/cortexd; engine and graph expose
// plain counter accessors rather than pushing into Metrics directly, so
// the engine and knowledge packages stay free of a telemetry dependency.
func (m *Metrics) Sample(processed, dropped uint64, activeActors, conceptCount int, maintenanceRuns uint64) {
	m.MessagesProcessed.Set(float64(processed))
	m.MessagesDropped.Set(float64(dropped))
	m.ActiveActors.Set(float64(activeActors))
	m.ConceptCount.Set(float64(conceptCount))
	m.MaintenanceRuns.Set(float64(maintenanceRuns))
}
