package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.KeyValue.Driver != DriverRedis {
		t.Errorf("expected default driver redis, got %s", cfg.KeyValue.Driver)
	}

	if cfg.Keys.JobsAllSet != "ontology_jobs:all" {
		t.Errorf("expected default global job set, got %s", cfg.Keys.JobsAllSet)
	}

	if cfg.Purge.Concurrency != 1 {
		t.Errorf("expected sequential purge by default, got %d", cfg.Purge.Concurrency)
	}

	if len(cfg.Purge.Policy.Denylist) != 2 {
		t.Errorf("expected default denylist, got %v", cfg.Purge.Policy.Denylist)
	}

	if cfg.Report.Archive.Enabled || cfg.Report.Kafka.Enabled {
		t.Error("expected report sinks to be disabled by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
tripleStore:
  endpoint: http://graphdb:7200/repositories/prod
keyValue:
  driver: oxia
  oxia:
    endpoint: oxia:6648
    namespace: janitor
keys:
  jobPrefix: "job:"
purge:
  concurrency: 4
  policy:
    denylist: [company, product, person]
    preserveWorkspaceSchema: true
report:
  format: json
  kafka:
    enabled: true
    brokers: [kafka-1:9092, kafka-2:9092]
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.TripleStore.Endpoint != "http://graphdb:7200/repositories/prod" {
		t.Errorf("endpoint = %s", cfg.TripleStore.Endpoint)
	}
	if cfg.KeyValue.Driver != DriverOxia || cfg.KeyValue.Oxia.Namespace != "janitor" {
		t.Errorf("unexpected key-value config: %+v", cfg.KeyValue)
	}
	if cfg.Keys.JobPrefix != "job:" || cfg.Keys.JobsAllSet != "ontology_jobs:all" {
		t.Errorf("partial keys should keep other defaults: %+v", cfg.Keys)
	}
	if cfg.Purge.Concurrency != 4 || !cfg.Purge.Policy.PreserveWorkspaceSchema {
		t.Errorf("unexpected purge config: %+v", cfg.Purge)
	}
	if len(cfg.Purge.Policy.Denylist) != 3 {
		t.Errorf("denylist = %v", cfg.Purge.Policy.Denylist)
	}
	if len(cfg.Purge.Policy.PlaceholderMarkers) == 0 {
		t.Error("unset placeholder markers should keep defaults")
	}
	if cfg.Report.Kafka.Topic != "storejanitor.reports" || len(cfg.Report.Kafka.Brokers) != 2 {
		t.Errorf("unexpected kafka config: %+v", cfg.Report.Kafka)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("empty file should yield defaults: %v", err)
	}
	if cfg.TripleStore.Endpoint != Default().TripleStore.Endpoint {
		t.Errorf("unexpected endpoint %s", cfg.TripleStore.Endpoint)
	}
}

func TestParse_UnknownField(t *testing.T) {
	if _, err := Parse([]byte("tripleStore:\n  endpiont: http://x\n")); err == nil {
		t.Fatal("expected error for misspelled key")
	}
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "janitor.yaml")
	if err := os.WriteFile(path, []byte("keyValue:\n  redis:\n    addr: redis:6380\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.KeyValue.Redis.Addr != "redis:6380" {
		t.Errorf("addr = %s", cfg.KeyValue.Redis.Addr)
	}

	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_UsesEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "janitor.yaml")
	if err := os.WriteFile(path, []byte("purge:\n  pageSize: 50\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Purge.PageSize != 50 {
		t.Errorf("pageSize = %d, want 50", cfg.Purge.PageSize)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("STOREJANITOR_TRIPLESTORE_ENDPOINT", "http://env:7200/repositories/r")
	t.Setenv("STOREJANITOR_REDIS_DB", "3")
	t.Setenv("STOREJANITOR_KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("STOREJANITOR_KAFKA_PARTITIONS", "6")
	t.Setenv("STOREJANITOR_ARCHIVE_ENABLED", "true")

	cfg, err := Parse([]byte("tripleStore:\n  endpoint: http://file:7200\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TripleStore.Endpoint != "http://env:7200/repositories/r" {
		t.Errorf("env should override file, got %s", cfg.TripleStore.Endpoint)
	}
	if cfg.KeyValue.Redis.DB != 3 {
		t.Errorf("db = %d", cfg.KeyValue.Redis.DB)
	}
	if b := cfg.Report.Kafka.Brokers; len(b) != 2 || b[0] != "a:9092" || b[1] != "b:9092" {
		t.Errorf("brokers = %v", b)
	}
	if cfg.Report.Kafka.Partitions != 6 || !cfg.Report.Archive.Enabled {
		t.Errorf("unexpected report config: %+v", cfg.Report)
	}
}

func TestApplyEnv_InvalidValue(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv("STOREJANITOR_PURGE_CONCURRENCY", "many")
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "STOREJANITOR_PURGE_CONCURRENCY") {
		t.Fatalf("expected error naming the variable, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.KeyValue.Driver = "etcd" }, "keyValue.driver"},
		{"missing endpoint", func(c *Config) { c.TripleStore.Endpoint = "" }, "tripleStore.endpoint"},
		{"zero concurrency", func(c *Config) { c.Purge.Concurrency = 0 }, "purge.concurrency"},
		{"bad report format", func(c *Config) { c.Report.Format = "csv" }, "report.format"},
		{"archive without bucket", func(c *Config) { c.Report.Archive.Enabled = true }, "report.archive.bucket"},
		{"kafka without brokers", func(c *Config) { c.Report.Kafka.Enabled = true }, "report.kafka"},
		{"bad log level", func(c *Config) { c.Observability.LogLevel = "loud" }, "observability.logLevel"},
		{"empty key prefix", func(c *Config) { c.Keys.ChunkPrefix = "" }, "keys"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}
