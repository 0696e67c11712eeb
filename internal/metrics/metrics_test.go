package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

func TestNewJanitorMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJanitorMetricsWithRegistry(reg)

	// Vectors only show up once a label set is used.
	m.RecordGraphClassified("other")
	m.RecordGraphOutcome("deleted")
	m.RecordOrphansRemoved("jobs", 1)
	m.RecordChunkMismatch()
	m.RecordItemFailure("purge")
	m.RecordRun("purge", 2, true)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	expected := map[string]bool{
		"storejanitor_purge_graphs_classified_total":    false,
		"storejanitor_purge_graph_outcomes_total":       false,
		"storejanitor_reconcile_orphans_removed_total":  false,
		"storejanitor_reconcile_chunk_mismatches_total": false,
		"storejanitor_item_failures_total":              false,
		"storejanitor_run_duration_seconds":             false,
		"storejanitor_last_run_timestamp_seconds":       false,
	}
	for _, family := range families {
		if _, ok := expected[family.GetName()]; ok {
			expected[family.GetName()] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("expected metric %s to be registered", name)
		}
	}
}

func TestJanitorMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJanitorMetricsWithRegistry(reg)

	m.RecordGraphClassified("workspace-data")
	m.RecordGraphClassified("workspace-data")
	m.RecordGraphClassified("global-ontology")
	m.RecordGraphOutcome("preserved")
	m.RecordOrphansRemoved("chunks", 3)
	m.RecordChunkMismatch()

	if got := testutil.ToFloat64(m.GraphsClassified.WithLabelValues("workspace-data")); got != 2 {
		t.Errorf("workspace-data classified = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.GraphsClassified.WithLabelValues("global-ontology")); got != 1 {
		t.Errorf("global-ontology classified = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.OrphansRemoved.WithLabelValues("chunks")); got != 3 {
		t.Errorf("chunk orphans = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.ChunkMismatches); got != 1 {
		t.Errorf("mismatches = %v, want 1", got)
	}
}

func TestJanitorMetrics_RecordRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJanitorMetricsWithRegistry(reg)

	m.RecordRun("reconcile", 12, true)
	m.RecordRun("reconcile", 3, false)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	mf := findMetricFamily(mfs, "storejanitor_run_duration_seconds")
	if mf == nil {
		t.Fatal("run duration histogram not found")
	}
	for _, s := range []string{StatusSuccess, StatusFailure} {
		h := getHistogram(mf, map[string]string{"component": "reconcile", "status": s})
		if h == nil || h.GetSampleCount() != 1 {
			t.Errorf("expected one %s sample, got %v", s, h)
		}
	}

	if got := testutil.ToFloat64(m.LastRunTimestamp.WithLabelValues("reconcile")); got <= 0 {
		t.Errorf("last run timestamp not set: %v", got)
	}
}

func TestJanitorMetrics_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewJanitorMetricsWithRegistry(reg)

	defer func() {
		if recover() == nil {
			t.Error("registering twice on one registry should panic")
		}
	}()
	NewJanitorMetricsWithRegistry(reg)
}

func TestStoreMetrics_Recorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStoreMetricsWithRegistry(reg)

	kv := m.Recorder(StoreKV)
	kv.RecordOperation("srem", 0.002, true)
	kv.RecordOperation("srem", 0.004, true)
	kv.RecordOperation("scan", 0.01, false)
	m.Recorder(StoreTriple).RecordOperation("drop_graph", 0.2, true)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	mf := findMetricFamily(mfs, "storejanitor_store_operations_total")
	if mf == nil {
		t.Fatal("operations counter not found")
	}

	tests := []struct {
		labels map[string]string
		want   float64
	}{
		{map[string]string{"store": "kvstore", "operation": "srem", "status": "success"}, 2},
		{map[string]string{"store": "kvstore", "operation": "scan", "status": "failure"}, 1},
		{map[string]string{"store": "triplestore", "operation": "drop_graph", "status": "success"}, 1},
		{map[string]string{"store": "archive", "operation": "put", "status": "success"}, 0},
	}
	for _, tt := range tests {
		if got := getCounterValue(mf, tt.labels); got != tt.want {
			t.Errorf("%v = %v, want %v", tt.labels, got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(m.LatencyHistogram); n != 3 {
		t.Errorf("expected 3 latency series, got %d", n)
	}
}

// Helper to find a metric family by name
func findMetricFamily(mfs []*io_prometheus_client.MetricFamily, name string) *io_prometheus_client.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

// Helper to get counter value with specific labels
func getCounterValue(mf *io_prometheus_client.MetricFamily, labels map[string]string) float64 {
	for _, metric := range mf.Metric {
		if matchLabels(metric.Label, labels) {
			if metric.Counter != nil {
				return metric.Counter.GetValue()
			}
		}
	}
	return 0
}

func getHistogram(mf *io_prometheus_client.MetricFamily, labels map[string]string) *io_prometheus_client.Histogram {
	for _, metric := range mf.Metric {
		if matchLabels(metric.Label, labels) {
			return metric.Histogram
		}
	}
	return nil
}

// Helper to check if metric labels match expected labels
func matchLabels(metricLabels []*io_prometheus_client.LabelPair, expected map[string]string) bool {
	if len(metricLabels) != len(expected) {
		return false
	}
	for _, lp := range metricLabels {
		if expected[lp.GetName()] != lp.GetValue() {
			return false
		}
	}
	return true
}
