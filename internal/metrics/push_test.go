package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPusher_Push(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	reg := prometheus.NewRegistry()
	m := NewJanitorMetricsWithRegistry(reg)
	m.RecordOrphansRemoved("jobs", 1)

	p := NewPusher(gw.URL, "storejanitor", reg).Grouping("command", "reconcile")
	if !p.Enabled() {
		t.Fatal("pusher should be enabled")
	}
	if err := p.Push(context.Background()); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut {
		t.Errorf("method = %s, want PUT", method)
	}
	if path != "/metrics/job/storejanitor/command/reconcile" {
		t.Errorf("path = %s", path)
	}
	// Body is protobuf delimited; the metric name is still present verbatim.
	if !strings.Contains(body, "storejanitor_reconcile_orphans_removed_total") {
		t.Error("pushed body does not contain janitor metrics")
	}
}

func TestPusher_GatewayError(t *testing.T) {
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer gw.Close()

	reg := prometheus.NewRegistry()
	NewJanitorMetricsWithRegistry(reg).RecordChunkMismatch()

	err := NewPusher(gw.URL, "storejanitor", reg).Push(context.Background())
	if err == nil || !strings.Contains(err.Error(), gw.URL) {
		t.Fatalf("expected push error naming the gateway, got %v", err)
	}
}

func TestPusher_Disabled(t *testing.T) {
	p := NewPusher("", "storejanitor", prometheus.NewRegistry()).Grouping("command", "purge")
	if p.Enabled() {
		t.Error("pusher without URL should be disabled")
	}
	if err := p.Push(context.Background()); err != nil {
		t.Errorf("disabled push should be a no-op: %v", err)
	}
}
