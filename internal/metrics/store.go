package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Store label values.
const (
	StoreKV      = "kvstore"
	StoreTriple  = "triplestore"
	StoreArchive = "archive"
)

// StoreMetrics holds per-operation metrics for the stores a run talks to.
type StoreMetrics struct {
	// LatencyHistogram tracks operation latencies.
	// Labels: store, operation, status (success, failure)
	LatencyHistogram *prometheus.HistogramVec

	// RequestsTotal counts operations.
	// Labels: store, operation, status (success, failure)
	RequestsTotal *prometheus.CounterVec
}

// DefaultStoreLatencyBuckets span in-memory key-value calls through slow
// SPARQL queries and object uploads.
var DefaultStoreLatencyBuckets = []float64{
	0.0005, // 0.5ms
	0.001,  // 1ms
	0.005,  // 5ms
	0.01,   // 10ms
	0.025,  // 25ms
	0.05,   // 50ms
	0.1,    // 100ms
	0.25,   // 250ms
	0.5,    // 500ms
	1.0,    // 1s
	2.5,    // 2.5s
	5.0,    // 5s
	10.0,   // 10s
	30.0,   // 30s
}

func newStoreMetrics(f promauto.Factory) *StoreMetrics {
	return &StoreMetrics{
		LatencyHistogram: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "storejanitor",
				Subsystem: "store",
				Name:      "operation_latency_seconds",
				Help:      "Store operation latency in seconds, by store, operation and status.",
				Buckets:   DefaultStoreLatencyBuckets,
			},
			[]string{"store", "operation", "status"},
		),
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storejanitor",
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Total store operations, by store, operation and status.",
			},
			[]string{"store", "operation", "status"},
		),
	}
}

// NewStoreMetrics creates store metrics registered with the default registry.
func NewStoreMetrics() *StoreMetrics {
	return NewStoreMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewStoreMetricsWithRegistry creates store metrics registered with reg.
func NewStoreMetricsWithRegistry(reg prometheus.Registerer) *StoreMetrics {
	return newStoreMetrics(promauto.With(reg))
}

// RecordOperation records one operation against store.
func (m *StoreMetrics) RecordOperation(store, operation string, durationSeconds float64, success bool) {
	s := status(success)
	m.LatencyHistogram.WithLabelValues(store, operation, s).Observe(durationSeconds)
	m.RequestsTotal.WithLabelValues(store, operation, s).Inc()
}

// Recorder returns a recorder bound to one store. It satisfies the
// MetricsRecorder interfaces of the kvstore, triplestore and objectstore
// packages.
func (m *StoreMetrics) Recorder(store string) *StoreRecorder {
	return &StoreRecorder{metrics: m, store: store}
}

// StoreRecorder records operations for a single store.
type StoreRecorder struct {
	metrics *StoreMetrics
	store   string
}

// RecordOperation records one operation.
func (r *StoreRecorder) RecordOperation(operation string, durationSeconds float64, success bool) {
	r.metrics.RecordOperation(r.store, operation, durationSeconds, success)
}
