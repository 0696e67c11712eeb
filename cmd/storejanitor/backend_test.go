package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/dray-io/storejanitor/internal/config"
	"github.com/dray-io/storejanitor/internal/storeerr"
)

func TestLiveBackendReconcileOnRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	if _, err := mr.SetAdd("ontology_jobs:all", "41", "42"); err != nil {
		t.Fatal(err)
	}
	if _, err := mr.SetAdd("ontology_jobs:workspace:w1", "42"); err != nil {
		t.Fatal(err)
	}
	mr.HSet("ontology_job:41", "jobId", "41")
	t.Setenv("STOREJANITOR_REDIS_ADDR", mr.Addr())

	_, _, err := execute(t, liveBackend{}, "reconcile", "jobs", "--id", "42")
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if ok, _ := mr.IsMember("ontology_jobs:all", "42"); ok {
		t.Error("42 still in the global job set")
	}
	if ok, _ := mr.IsMember("ontology_jobs:all", "41"); !ok {
		t.Error("41 must stay indexed")
	}
	if mr.Exists("ontology_jobs:workspace:w1") {
		t.Error("emptied workspace set should be gone")
	}
}

func TestLiveBackendRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	t.Setenv("STOREJANITOR_REDIS_ADDR", addr)
	t.Setenv("STOREJANITOR_KV_PING_RETRIES", "1")

	_, _, err := execute(t, liveBackend{}, "audit", "jobs")
	if code := exitCode(err); code != ExitFailure {
		t.Fatalf("exit code = %d, want %d (%v)", code, ExitFailure, err)
	}
	if !storeerr.IsConnection(err) {
		t.Errorf("expected a connection error, got %v", err)
	}
}

func TestLiveBackendTripleStorePing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/sparql-results+json")
		io.WriteString(w, `{"head":{},"boolean":true}`)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.TripleStore.Endpoint = srv.URL + "/repositories/ontology"
	if _, err := (liveBackend{}).TripleStore(context.Background(), cfg); err != nil {
		t.Fatalf("TripleStore failed: %v", err)
	}
}

func TestLiveBackendTripleStoreUnauthorized(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.TripleStore.Endpoint = srv.URL
	_, err := (liveBackend{}).TripleStore(context.Background(), cfg)
	if !storeerr.IsConnection(err) {
		t.Fatalf("expected a connection error, got %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("auth failures must not be retried, got %d requests", n)
	}
}

func TestLiveBackendUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.KeyValue.Driver = "memcached"
	if _, err := (liveBackend{}).KVStore(context.Background(), cfg); err == nil {
		t.Fatal("expected an error for an unknown driver")
	}
}
