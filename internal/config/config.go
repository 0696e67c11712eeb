// Package config provides configuration loading and validation for the
// store janitor. Supports YAML files with environment variable overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dray-io/storejanitor/internal/kvstore"
	"github.com/dray-io/storejanitor/internal/logging"
	"github.com/dray-io/storejanitor/internal/policy"
	"github.com/dray-io/storejanitor/internal/report"
)

// EnvConfigPath names the environment variable Load reads the file path from.
const EnvConfigPath = "STOREJANITOR_CONFIG"

// Key-value drivers.
const (
	DriverRedis = "redis"
	DriverOxia  = "oxia"
)

// Config holds all configuration for a janitor run.
type Config struct {
	TripleStore   TripleStoreConfig   `yaml:"tripleStore"`
	KeyValue      KeyValueConfig      `yaml:"keyValue"`
	Keys          kvstore.KeySpace    `yaml:"keys"`
	Purge         PurgeConfig         `yaml:"purge"`
	Report        ReportConfig        `yaml:"report"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type TripleStoreConfig struct {
	Endpoint    string `yaml:"endpoint" env:"STOREJANITOR_TRIPLESTORE_ENDPOINT"`
	Username    string `yaml:"username" env:"STOREJANITOR_TRIPLESTORE_USERNAME"`
	Password    string `yaml:"password" env:"STOREJANITOR_TRIPLESTORE_PASSWORD"`
	TimeoutMs   int64  `yaml:"timeoutMs" env:"STOREJANITOR_TRIPLESTORE_TIMEOUT_MS"`
	PingRetries int    `yaml:"pingRetries" env:"STOREJANITOR_TRIPLESTORE_PING_RETRIES"`
}

type KeyValueConfig struct {
	Driver      string      `yaml:"driver" env:"STOREJANITOR_KV_DRIVER"`
	Redis       RedisConfig `yaml:"redis"`
	Oxia        OxiaConfig  `yaml:"oxia"`
	BatchSize   int         `yaml:"batchSize" env:"STOREJANITOR_KV_BATCH_SIZE"`
	PingRetries int         `yaml:"pingRetries" env:"STOREJANITOR_KV_PING_RETRIES"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"STOREJANITOR_REDIS_ADDR"`
	Username string `yaml:"username" env:"STOREJANITOR_REDIS_USERNAME"`
	Password string `yaml:"password" env:"STOREJANITOR_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"STOREJANITOR_REDIS_DB"`
}

type OxiaConfig struct {
	Endpoint         string `yaml:"endpoint" env:"STOREJANITOR_OXIA_ENDPOINT"`
	Namespace        string `yaml:"namespace" env:"STOREJANITOR_OXIA_NAMESPACE"`
	RequestTimeoutMs int64  `yaml:"requestTimeoutMs" env:"STOREJANITOR_OXIA_REQUEST_TIMEOUT_MS"`
}

type PurgeConfig struct {
	Policy      policy.Policy `yaml:"policy"`
	Concurrency int           `yaml:"concurrency" env:"STOREJANITOR_PURGE_CONCURRENCY"`
	PageSize    int           `yaml:"pageSize" env:"STOREJANITOR_PURGE_PAGE_SIZE"`
}

type ReportConfig struct {
	Format  string        `yaml:"format" env:"STOREJANITOR_REPORT_FORMAT"`
	Archive ArchiveConfig `yaml:"archive"`
	Kafka   KafkaConfig   `yaml:"kafka"`
}

// ArchiveConfig configures the S3 report archive.
type ArchiveConfig struct {
	Enabled      bool   `yaml:"enabled" env:"STOREJANITOR_ARCHIVE_ENABLED"`
	Endpoint     string `yaml:"endpoint" env:"STOREJANITOR_S3_ENDPOINT"`
	Bucket       string `yaml:"bucket" env:"STOREJANITOR_S3_BUCKET"`
	Region       string `yaml:"region" env:"STOREJANITOR_S3_REGION"`
	AccessKey    string `yaml:"accessKey" env:"STOREJANITOR_S3_ACCESS_KEY"`
	SecretKey    string `yaml:"secretKey" env:"STOREJANITOR_S3_SECRET_KEY"`
	UsePathStyle bool   `yaml:"usePathStyle" env:"STOREJANITOR_S3_PATH_STYLE"`
	Prefix       string `yaml:"prefix" env:"STOREJANITOR_ARCHIVE_PREFIX"`
	Keep         int    `yaml:"keep" env:"STOREJANITOR_ARCHIVE_KEEP"`
}

// KafkaConfig configures report publishing to Kafka.
type KafkaConfig struct {
	Enabled           bool     `yaml:"enabled" env:"STOREJANITOR_KAFKA_ENABLED"`
	Brokers           []string `yaml:"brokers" env:"STOREJANITOR_KAFKA_BROKERS"`
	Topic             string   `yaml:"topic" env:"STOREJANITOR_KAFKA_TOPIC"`
	ClientID          string   `yaml:"clientId" env:"STOREJANITOR_KAFKA_CLIENT_ID"`
	Partitions        int32    `yaml:"partitions" env:"STOREJANITOR_KAFKA_PARTITIONS"`
	ReplicationFactor int16    `yaml:"replicationFactor" env:"STOREJANITOR_KAFKA_REPLICATION_FACTOR"`
}

type ObservabilityConfig struct {
	LogLevel       string `yaml:"logLevel" env:"STOREJANITOR_LOG_LEVEL"`
	LogFormat      string `yaml:"logFormat" env:"STOREJANITOR_LOG_FORMAT"`
	PushgatewayURL string `yaml:"pushgatewayUrl" env:"STOREJANITOR_PUSHGATEWAY_URL"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		TripleStore: TripleStoreConfig{
			Endpoint:    "http://localhost:7200/repositories/ontology",
			TimeoutMs:   30000,
			PingRetries: 3,
		},
		KeyValue: KeyValueConfig{
			Driver: DriverRedis,
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
			Oxia: OxiaConfig{
				Endpoint:         "localhost:6648",
				Namespace:        "default",
				RequestTimeoutMs: 30000,
			},
			BatchSize:   500,
			PingRetries: 3,
		},
		Keys: kvstore.DefaultKeySpace(),
		Purge: PurgeConfig{
			Policy:      policy.Default(),
			Concurrency: 1,
			PageSize:    500,
		},
		Report: ReportConfig{
			Format: string(report.FormatText),
			Archive: ArchiveConfig{
				Region: "us-east-1",
				Prefix: "storejanitor",
				Keep:   100,
			},
			Kafka: KafkaConfig{
				Topic:    "storejanitor.reports",
				ClientID: "storejanitor",
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Load reads the file named by STOREJANITOR_CONFIG, or starts from the
// defaults when it is unset. Environment overrides are applied either way.
func Load() (*Config, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return LoadFromPath(path)
	}
	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath reads a YAML file over the defaults and applies
// environment overrides.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and applies environment overrides.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.TripleStore.Endpoint == "" {
		add("tripleStore.endpoint is required")
	}

	switch c.KeyValue.Driver {
	case DriverRedis:
		if c.KeyValue.Redis.Addr == "" {
			add("keyValue.redis.addr is required")
		}
	case DriverOxia:
		if c.KeyValue.Oxia.Endpoint == "" {
			add("keyValue.oxia.endpoint is required")
		}
	default:
		add("keyValue.driver must be %q or %q, got %q", DriverRedis, DriverOxia, c.KeyValue.Driver)
	}

	if c.Keys.JobPrefix == "" || c.Keys.JobsAllSet == "" || c.Keys.JobsWorkspacePrefix == "" ||
		c.Keys.DocumentPrefix == "" || c.Keys.ChunkPrefix == "" {
		add("keys: every prefix must be set")
	}

	if c.Purge.Concurrency < 1 {
		add("purge.concurrency must be at least 1")
	}
	if c.Purge.PageSize < 1 {
		add("purge.pageSize must be at least 1")
	}

	if _, err := report.ParseFormat(c.Report.Format); err != nil {
		add("report.format: %w", err)
	}
	if a := c.Report.Archive; a.Enabled && a.Bucket == "" {
		add("report.archive.bucket is required when the archive is enabled")
	}
	if k := c.Report.Kafka; k.Enabled && (len(k.Brokers) == 0 || k.Topic == "") {
		add("report.kafka.brokers and report.kafka.topic are required when kafka is enabled")
	}

	if _, err := logging.ParseLevel(c.Observability.LogLevel); err != nil {
		add("observability.logLevel: %w", err)
	}
	if _, err := logging.ParseFormat(c.Observability.LogFormat); err != nil {
		add("observability.logFormat: %w", err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
	}
	return nil
}
