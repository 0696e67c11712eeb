package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dray-io/storejanitor/internal/config"
	"github.com/dray-io/storejanitor/internal/kvstore"
	"github.com/dray-io/storejanitor/internal/kvstore/oxia"
	"github.com/dray-io/storejanitor/internal/kvstore/redis"
	"github.com/dray-io/storejanitor/internal/objectstore"
	"github.com/dray-io/storejanitor/internal/objectstore/s3"
	"github.com/dray-io/storejanitor/internal/report"
	"github.com/dray-io/storejanitor/internal/triplestore"
)

// backend opens the store handles a run works on. Every opened handle is
// verified reachable; the caller closes it.
type backend interface {
	TripleStore(ctx context.Context, cfg *config.Config) (triplestore.Store, error)
	KVStore(ctx context.Context, cfg *config.Config) (kvstore.Store, error)
	ArchiveStore(ctx context.Context, cfg *config.Config) (objectstore.Store, error)
	KafkaSink(ctx context.Context, cfg *config.Config) (*report.KafkaSink, error)
}

// liveBackend connects to the servers named in the configuration.
type liveBackend struct{}

func (liveBackend) TripleStore(ctx context.Context, cfg *config.Config) (triplestore.Store, error) {
	client, err := triplestore.New(triplestore.Config{
		Endpoint:    cfg.TripleStore.Endpoint,
		Username:    cfg.TripleStore.Username,
		Password:    cfg.TripleStore.Password,
		Timeout:     time.Duration(cfg.TripleStore.TimeoutMs) * time.Millisecond,
		PingRetries: cfg.TripleStore.PingRetries,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func (liveBackend) KVStore(ctx context.Context, cfg *config.Config) (kvstore.Store, error) {
	var (
		store    kvstore.Store
		endpoint string
		err      error
	)
	switch cfg.KeyValue.Driver {
	case config.DriverRedis:
		endpoint = cfg.KeyValue.Redis.Addr
		store, err = redis.New(redis.Config{
			Addr:     cfg.KeyValue.Redis.Addr,
			Username: cfg.KeyValue.Redis.Username,
			Password: cfg.KeyValue.Redis.Password,
			DB:       cfg.KeyValue.Redis.DB,
		})
	case config.DriverOxia:
		endpoint = cfg.KeyValue.Oxia.Endpoint
		store, err = oxia.New(ctx, oxia.Config{
			ServiceAddress: cfg.KeyValue.Oxia.Endpoint,
			Namespace:      cfg.KeyValue.Oxia.Namespace,
			RequestTimeout: time.Duration(cfg.KeyValue.Oxia.RequestTimeoutMs) * time.Millisecond,
		})
	default:
		return nil, fmt.Errorf("unknown key-value driver %q", cfg.KeyValue.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := kvstore.WaitReady(ctx, store, endpoint, kvstore.PingOptions{Retries: cfg.KeyValue.PingRetries}); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func (liveBackend) ArchiveStore(ctx context.Context, cfg *config.Config) (objectstore.Store, error) {
	a := cfg.Report.Archive
	return s3.New(ctx, s3.Config{
		Bucket:          a.Bucket,
		Region:          a.Region,
		Endpoint:        a.Endpoint,
		AccessKeyID:     a.AccessKey,
		SecretAccessKey: a.SecretKey,
		UsePathStyle:    a.UsePathStyle,
	})
}

func (liveBackend) KafkaSink(ctx context.Context, cfg *config.Config) (*report.KafkaSink, error) {
	k := cfg.Report.Kafka
	sink, err := report.NewKafkaSink(report.KafkaConfig{
		Brokers:           k.Brokers,
		Topic:             k.Topic,
		ClientID:          k.ClientID,
		Partitions:        k.Partitions,
		ReplicationFactor: k.ReplicationFactor,
	})
	if err != nil {
		return nil, err
	}
	if err := sink.EnsureTopic(ctx); err != nil {
		sink.Close()
		return nil, err
	}
	return sink, nil
}
