// Package metrics provides Prometheus metrics for janitor runs.
//
// The package exposes:
//   - graph classifications by category and graph outcomes (preserved,
//     deleted, planned, failed)
//   - index orphans removed by family, chunk owner mismatches and item
//     failures
//   - run duration by component and status
//   - per-operation latency and counts for the key-value store, the
//     triple store and the report archive
//
// Janitor runs are short-lived batch jobs, so metrics are pushed to a
// Prometheus Pushgateway when a run ends instead of being scraped.
//
// Usage:
//
//	reg := prometheus.NewRegistry()
//	jm := metrics.NewJanitorMetricsWithRegistry(reg)
//	sm := metrics.NewStoreMetricsWithRegistry(reg)
//
//	kv := kvstore.NewInstrumentedStore(store, sm.Recorder(metrics.StoreKV))
//	purger := purge.New(triples, pol, cfg).WithMetrics(jm)
//
//	defer metrics.NewPusher(url, "storejanitor", reg).Push(ctx)
package metrics

// StatusSuccess is the label value for successful operations.
const StatusSuccess = "success"

// StatusFailure is the label value for failed operations.
const StatusFailure = "failure"

func status(success bool) string {
	if success {
		return StatusSuccess
	}
	return StatusFailure
}
