package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// JanitorMetrics holds metrics for purge, reconcile and audit runs.
type JanitorMetrics struct {
	// GraphsClassified counts graphs seen by a purge.
	// Labels: category
	GraphsClassified *prometheus.CounterVec

	// GraphOutcomes counts purge decisions and their results.
	// Labels: outcome (preserved, deleted, planned, failed)
	GraphOutcomes *prometheus.CounterVec

	// OrphansRemoved counts index entries removed by reconciliation.
	// Labels: family (jobs, chunks)
	OrphansRemoved *prometheus.CounterVec

	// ChunkMismatches counts chunks whose owner disagrees with their document.
	ChunkMismatches prometheus.Counter

	// ItemFailures counts single items that could not be processed.
	// Labels: component
	ItemFailures *prometheus.CounterVec

	// RunDuration tracks how long runs take.
	// Labels: component (purge, reconcile, audit), status (success, failure)
	RunDuration *prometheus.HistogramVec

	// LastRunTimestamp is the unix time a component last finished.
	// Labels: component
	LastRunTimestamp *prometheus.GaugeVec
}

// DefaultRunDurationBuckets covers runs from a second to a few hours.
var DefaultRunDurationBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600, 7200}

func newJanitorMetrics(f promauto.Factory) *JanitorMetrics {
	return &JanitorMetrics{
		GraphsClassified: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storejanitor",
				Subsystem: "purge",
				Name:      "graphs_classified_total",
				Help:      "Graphs classified by a purge, by category.",
			},
			[]string{"category"},
		),
		GraphOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storejanitor",
				Subsystem: "purge",
				Name:      "graph_outcomes_total",
				Help:      "Purge decisions and drop results, by outcome.",
			},
			[]string{"outcome"},
		),
		OrphansRemoved: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storejanitor",
				Subsystem: "reconcile",
				Name:      "orphans_removed_total",
				Help:      "Orphaned index entries removed, by record family.",
			},
			[]string{"family"},
		),
		ChunkMismatches: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "storejanitor",
				Subsystem: "reconcile",
				Name:      "chunk_mismatches_total",
				Help:      "Chunks whose owner fields disagree with the owning document.",
			},
		),
		ItemFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storejanitor",
				Name:      "item_failures_total",
				Help:      "Items that could not be processed, by component.",
			},
			[]string{"component"},
		),
		RunDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "storejanitor",
				Name:      "run_duration_seconds",
				Help:      "Duration of janitor runs in seconds.",
				Buckets:   DefaultRunDurationBuckets,
			},
			[]string{"component", "status"},
		),
		LastRunTimestamp: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "storejanitor",
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time a component last finished a run.",
			},
			[]string{"component"},
		),
	}
}

// NewJanitorMetrics creates janitor metrics registered with the default registry.
func NewJanitorMetrics() *JanitorMetrics {
	return NewJanitorMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewJanitorMetricsWithRegistry creates janitor metrics registered with reg.
// Useful for testing to avoid conflicts with the default registry.
func NewJanitorMetricsWithRegistry(reg prometheus.Registerer) *JanitorMetrics {
	return newJanitorMetrics(promauto.With(reg))
}

// RecordGraphClassified counts one classified graph.
func (m *JanitorMetrics) RecordGraphClassified(category string) {
	m.GraphsClassified.WithLabelValues(category).Inc()
}

// RecordGraphOutcome counts one purge outcome.
func (m *JanitorMetrics) RecordGraphOutcome(outcome string) {
	m.GraphOutcomes.WithLabelValues(outcome).Inc()
}

// RecordOrphansRemoved adds n removed index entries for family.
func (m *JanitorMetrics) RecordOrphansRemoved(family string, n int) {
	m.OrphansRemoved.WithLabelValues(family).Add(float64(n))
}

// RecordChunkMismatch counts one chunk owner mismatch.
func (m *JanitorMetrics) RecordChunkMismatch() {
	m.ChunkMismatches.Inc()
}

// RecordItemFailure counts one failed item.
func (m *JanitorMetrics) RecordItemFailure(component string) {
	m.ItemFailures.WithLabelValues(component).Inc()
}

// RecordRun records a finished run.
func (m *JanitorMetrics) RecordRun(component string, durationSeconds float64, success bool) {
	m.RunDuration.WithLabelValues(component, status(success)).Observe(durationSeconds)
	m.LastRunTimestamp.WithLabelValues(component).SetToCurrentTime()
}
