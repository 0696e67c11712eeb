package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dray-io/storejanitor/internal/config"
	"github.com/dray-io/storejanitor/internal/kvstore"
	"github.com/dray-io/storejanitor/internal/objectstore"
	"github.com/dray-io/storejanitor/internal/report"
	"github.com/dray-io/storejanitor/internal/storeerr"
	"github.com/dray-io/storejanitor/internal/triplestore"
)

const (
	globalBanking = "http://example.org/global/ontology/banking"
	tenantOnto    = "http://example.org/tenant/acme/ontology/x"
	w1Data        = "http://example.org/tenant/acme/workspace/w1/data"
	w1Schema      = "http://example.org/workspace/w1/schema"
)

// keepOpenKV and keepOpenObjects hide Close so tests can inspect a mock
// after the command closed its handle.
type keepOpenKV struct{ kvstore.Store }

func (keepOpenKV) Close() error { return nil }

type keepOpenObjects struct{ objectstore.Store }

func (keepOpenObjects) Close() error { return nil }

type fakeBackend struct {
	triple    *triplestore.MockStore
	kv        *kvstore.MockStore
	archive   *objectstore.MockStore
	tripleErr error
	kvErr     error
}

func (b *fakeBackend) TripleStore(context.Context, *config.Config) (triplestore.Store, error) {
	if b.tripleErr != nil {
		return nil, b.tripleErr
	}
	return b.triple, nil
}

func (b *fakeBackend) KVStore(context.Context, *config.Config) (kvstore.Store, error) {
	if b.kvErr != nil {
		return nil, b.kvErr
	}
	return keepOpenKV{b.kv}, nil
}

func (b *fakeBackend) ArchiveStore(context.Context, *config.Config) (objectstore.Store, error) {
	if b.archive == nil {
		return nil, errors.New("no archive")
	}
	return keepOpenObjects{b.archive}, nil
}

func (b *fakeBackend) KafkaSink(context.Context, *config.Config) (*report.KafkaSink, error) {
	return nil, errors.New("kafka not available in tests")
}

func newFakeBackend() *fakeBackend {
	triple := triplestore.NewMockStore()
	triple.AddGraph(globalBanking, 120)
	triple.AddGraph(tenantOnto, 40)
	triple.AddGraph(w1Data, 9000)
	triple.AddGraph(w1Schema, 300)
	return &fakeBackend{
		triple: triple,
		kv:     kvstore.NewMockStore(),
	}
}

func execute(t *testing.T, b backend, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv(config.EnvConfigPath, "")

	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(&stdout, &stderr, b)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := newRootCommand(&bytes.Buffer{}, &bytes.Buffer{}, newFakeBackend())
	for _, path := range [][]string{
		{"purge"},
		{"reconcile", "jobs"},
		{"reconcile", "chunks"},
		{"audit", "jobs"},
		{"version"},
	} {
		sub, _, err := cmd.Find(path)
		if err != nil {
			t.Errorf("command %v: %v", path, err)
			continue
		}
		if sub.Name() != path[len(path)-1] {
			t.Errorf("command %v resolved to %q", path, sub.Name())
		}
	}
}

func TestVersionNeedsNoConfig(t *testing.T) {
	out, _, err := execute(t, newFakeBackend(), "version", "--config", "/does/not/exist.yaml")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out, "storejanitor version ") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestPurgeDataOnlyJSON(t *testing.T) {
	b := newFakeBackend()
	out, _, err := execute(t, b, "purge", "--mode", "data-only", "--format", "json")
	if code := exitCode(err); code != ExitSuccess {
		t.Fatalf("exit code = %d (%v)", code, err)
	}

	var rep report.PurgeReport
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("stdout is not a JSON report: %v\n%s", err, out)
	}
	if rep.Mode != "data-only" || len(rep.Deleted) != 2 {
		t.Errorf("unexpected report: %+v", rep)
	}
	if !b.triple.HasGraph(globalBanking) || !b.triple.HasGraph(tenantOnto) {
		t.Error("ontology graphs must survive a data-only purge")
	}
	if b.triple.HasGraph(w1Data) {
		t.Error("workspace data graph should be dropped")
	}
}

func TestPurgeDryRunDeletesNothing(t *testing.T) {
	b := newFakeBackend()
	out, _, err := execute(t, b, "purge", "--mode", "data-only", "--dry-run")
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if len(b.triple.Drops()) != 0 {
		t.Errorf("dry run dropped %v", b.triple.Drops())
	}
	if !strings.Contains(out, w1Data) {
		t.Errorf("text report should list planned graphs:\n%s", out)
	}
}

func TestPurgeItemFailureStillSucceeds(t *testing.T) {
	b := newFakeBackend()
	b.triple.FailDrop(w1Data, errors.New("status 500"))

	out, _, err := execute(t, b, "purge", "--mode", "data-only", "--format", "json")
	if code := exitCode(err); code != ExitSuccess {
		t.Fatalf("exit code = %d (%v)", code, err)
	}
	var rep report.PurgeReport
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatal(err)
	}
	if len(rep.Failed) != 1 || rep.Failed[0].ID != w1Data {
		t.Errorf("failed = %+v", rep.Failed)
	}
}

func TestPurgeUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing mode", []string{"purge"}},
		{"unknown mode", []string{"purge", "--mode", "everything"}},
		{"reset without workspace", []string{"purge", "--mode", "workspace-reset"}},
		{"bad concurrency", []string{"purge", "--mode", "data-only", "--concurrency", "0"}},
		{"bad format", []string{"purge", "--mode", "data-only", "--format", "yaml"}},
		{"unknown flag", []string{"purge", "--mode", "data-only", "--force"}},
		{"stray argument", []string{"purge", "--mode", "data-only", "extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend()
			_, _, err := execute(t, b, tt.args...)
			if code := exitCode(err); code != ExitUsage {
				t.Errorf("exit code = %d, want %d (%v)", code, ExitUsage, err)
			}
			if b.triple.ListCalls() != 0 {
				t.Error("usage errors must not touch the store")
			}
		})
	}
}

func TestPurgeUnreachableStore(t *testing.T) {
	b := newFakeBackend()
	b.tripleErr = storeerr.Connection(storeerr.StoreTriple, "http://localhost:7200", errors.New("connection refused"))

	out, stderr, err := execute(t, b, "purge", "--mode", "data-only")
	if code := exitCode(err); code != ExitFailure {
		t.Fatalf("exit code = %d, want %d (%v)", code, ExitFailure, err)
	}
	if !storeerr.IsConnection(err) {
		t.Errorf("expected a connection error, got %v", err)
	}
	if out != "" {
		t.Errorf("no report expected, got %q", out)
	}
	if !strings.Contains(stderr, "triple store unreachable") {
		t.Errorf("expected an error log, got %q", stderr)
	}
}

func TestPurgeEnumerationFailure(t *testing.T) {
	b := newFakeBackend()
	b.triple.FailList(storeerr.Connection(storeerr.StoreTriple, "http://localhost:7200", errors.New("reset by peer")))

	out, _, err := execute(t, b, "purge", "--mode", "data-only", "--format", "json")
	if code := exitCode(err); code != ExitFailure {
		t.Fatalf("exit code = %d, want %d (%v)", code, ExitFailure, err)
	}
	var rep report.PurgeReport
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("partial report expected: %v", err)
	}
	if rep.Aborted == "" {
		t.Error("partial report should say why it stopped")
	}
}

func seedJob42(t *testing.T, kv *kvstore.MockStore) {
	t.Helper()
	ctx := context.Background()
	if _, err := kv.SAdd(ctx, "ontology_jobs:all", "41", "42"); err != nil {
		t.Fatal(err)
	}
	if _, err := kv.SAdd(ctx, "ontology_jobs:workspace:w1", "42"); err != nil {
		t.Fatal(err)
	}
	if err := kv.HSet(ctx, "ontology_job:41", map[string]string{"jobId": "41", "workspace_id": "w1"}); err != nil {
		t.Fatal(err)
	}
}

func TestReconcileJobsByID(t *testing.T) {
	b := newFakeBackend()
	seedJob42(t, b.kv)

	out, _, err := execute(t, b, "reconcile", "jobs", "--id", "42", "--format", "json")
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	var rep report.IndexReport
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatal(err)
	}
	if rep.OrphansRemoved != 1 {
		t.Errorf("orphansRemoved = %d, want 1", rep.OrphansRemoved)
	}

	ctx := context.Background()
	for _, set := range []string{"ontology_jobs:all", "ontology_jobs:workspace:w1"} {
		if ok, _ := b.kv.SIsMember(ctx, set, "42"); ok {
			t.Errorf("42 still in %s", set)
		}
	}
	if ok, _ := b.kv.SIsMember(ctx, "ontology_jobs:all", "41"); !ok {
		t.Error("41 must stay indexed")
	}
}

func TestReconcileJobsFromAudit(t *testing.T) {
	b := newFakeBackend()
	seedJob42(t, b.kv)

	_, _, err := execute(t, b, "reconcile", "jobs", "--from-audit")
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if ok, _ := b.kv.SIsMember(context.Background(), "ontology_jobs:all", "42"); ok {
		t.Error("dangling id 42 should have been removed")
	}
}

func TestReconcileChunks(t *testing.T) {
	b := newFakeBackend()
	ctx := context.Background()
	if err := b.kv.HSet(ctx, "document:d1", map[string]string{"documentId": "d1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.kv.SAdd(ctx, "document:d1:chunks", "c1", "c2"); err != nil {
		t.Fatal(err)
	}
	if err := b.kv.HSet(ctx, "chunk:c1", map[string]string{"documentId": "d1"}); err != nil {
		t.Fatal(err)
	}

	out, _, err := execute(t, b, "reconcile", "chunks", "--format", "json")
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	var rep report.IndexReport
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatal(err)
	}
	if rep.OrphansRemoved != 1 {
		t.Errorf("orphansRemoved = %d, want 1", rep.OrphansRemoved)
	}
}

func TestReconcileUnreachableStore(t *testing.T) {
	b := newFakeBackend()
	b.kvErr = storeerr.Connection(storeerr.StoreKV, "localhost:6379", errors.New("connection refused"))

	_, _, err := execute(t, b, "reconcile", "chunks")
	if code := exitCode(err); code != ExitFailure {
		t.Errorf("exit code = %d, want %d (%v)", code, ExitFailure, err)
	}
}

func TestAuditJobs(t *testing.T) {
	b := newFakeBackend()
	seedJob42(t, b.kv)

	out, _, err := execute(t, b, "audit", "jobs", "--format", "json")
	if err != nil {
		t.Fatalf("audit failed: %v", err)
	}
	var rep report.JobAudit
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatal(err)
	}
	if len(rep.Dangling) != 1 || rep.Dangling[0] != "42" {
		t.Errorf("dangling = %v, want [42]", rep.Dangling)
	}
	if b.kv.Calls("srem") != 0 || b.kv.Calls("del") != 0 {
		t.Error("audit must not write")
	}
}

func TestReportArchivedWhenEnabled(t *testing.T) {
	b := newFakeBackend()
	b.archive = objectstore.NewMockStore()

	path := filepath.Join(t.TempDir(), "storejanitor.yaml")
	cfg := `
report:
  archive:
    enabled: true
    bucket: reports
    prefix: janitor
`
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}

	_, _, err := execute(t, b, "--config", path, "purge", "--mode", "data-only")
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	keys := b.archive.Keys()
	if len(keys) != 1 || !strings.HasPrefix(keys[0], "janitor/purge/") {
		t.Errorf("archived keys = %v", keys)
	}
}

func TestArchiveUnavailableIsNotFatal(t *testing.T) {
	b := newFakeBackend()
	t.Setenv("STOREJANITOR_ARCHIVE_ENABLED", "true")
	t.Setenv("STOREJANITOR_S3_BUCKET", "reports")

	_, stderr, err := execute(t, b, "purge", "--mode", "data-only")
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if !strings.Contains(stderr, "report archive unavailable") {
		t.Errorf("expected a warning, got %q", stderr)
	}
}

func TestExitCode(t *testing.T) {
	conn := storeerr.Connection(storeerr.StoreKV, "localhost:6379", errors.New("refused"))
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitSuccess},
		{usageError("bad", nil), ExitUsage},
		{failure("down", conn), ExitFailure},
		{conn, ExitFailure},
		{errors.New(`unknown command "frobnicate"`), ExitUsage},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestPurgeConnectionLostDuringDrop(t *testing.T) {
	b := newFakeBackend()
	b.triple.FailDrop(w1Data, storeerr.Connection(storeerr.StoreTriple, "http://localhost:7200", errors.New("reset by peer")))

	out, _, err := execute(t, b, "purge", "--mode", "data-only", "--format", "json")
	if code := exitCode(err); code != ExitFailure {
		t.Fatalf("exit code = %d, want %d (%v)", code, ExitFailure, err)
	}
	var rep report.PurgeReport
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("partial report expected: %v", err)
	}
	if rep.Aborted == "" {
		t.Error("partial report should say why it stopped")
	}
	if !b.triple.HasGraph(w1Schema) {
		t.Error("no graph may be dropped after the store is lost")
	}
}

func TestAuditConnectionLostPublishesPartialReport(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"audit jobs", []string{"audit", "jobs", "--format", "json"}},
		{"reconcile jobs from audit", []string{"reconcile", "jobs", "--from-audit", "--format", "json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend()
			seedJob42(t, b.kv)
			b.kv.InjectFault("exists", "ontology_job:42", storeerr.Connection(storeerr.StoreKV, "localhost:6379", errors.New("reset by peer")))

			out, _, err := execute(t, b, tt.args...)
			if code := exitCode(err); code != ExitFailure {
				t.Fatalf("exit code = %d, want %d (%v)", code, ExitFailure, err)
			}
			var rep report.JobAudit
			if err := json.Unmarshal([]byte(out), &rep); err != nil {
				t.Fatalf("partial audit report expected: %v\n%s", err, out)
			}
			if rep.Aborted == "" {
				t.Error("partial report should say why it stopped")
			}
			if ok, _ := b.kv.SIsMember(context.Background(), "ontology_jobs:all", "42"); !ok {
				t.Error("nothing may be removed after a failed audit")
			}
		})
	}
}

func TestReconcileJobsFromArchivedAudit(t *testing.T) {
	b := newFakeBackend()
	b.archive = objectstore.NewMockStore()
	seedJob42(t, b.kv)

	audit := report.NewJobAudit("audit-1")
	audit.Dangling = []string{"42"}
	if err := report.NewArchiveSink(b.archive, "janitor", 0).Publish(context.Background(), audit); err != nil {
		t.Fatal(err)
	}
	key := objectstore.ReportKey("janitor", report.KindAudit, audit.StartedAt, audit.RunID)

	out, _, err := execute(t, b, "reconcile", "jobs", "--audit-report", key, "--format", "json")
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	var rep report.IndexReport
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatal(err)
	}
	if rep.OrphansRemoved != 1 {
		t.Errorf("orphansRemoved = %d, want 1", rep.OrphansRemoved)
	}
	if ok, _ := b.kv.SIsMember(context.Background(), "ontology_jobs:all", "42"); ok {
		t.Error("42 from the archived audit should have been removed")
	}
}

func TestReconcileJobsArchivedAuditMissing(t *testing.T) {
	b := newFakeBackend()
	b.archive = objectstore.NewMockStore()
	seedJob42(t, b.kv)

	_, _, err := execute(t, b, "reconcile", "jobs", "--audit-report", "janitor/audit/missing.json.gz")
	if code := exitCode(err); code != ExitFailure {
		t.Fatalf("exit code = %d, want %d (%v)", code, ExitFailure, err)
	}
	if b.kv.Calls("srem") != 0 {
		t.Error("nothing may be removed without the audit")
	}
}
