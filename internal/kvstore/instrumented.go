package kvstore

import (
	"context"
	"time"
)

// MetricsRecorder records key-value operation metrics.
// This allows the kvstore package to be decoupled from the metrics package.
type MetricsRecorder interface {
	RecordOperation(op string, durationSeconds float64, success bool)
}

// InstrumentedStore wraps a Store and records metrics for each operation.
type InstrumentedStore struct {
	store   Store
	metrics MetricsRecorder
}

// NewInstrumentedStore creates an instrumented wrapper around a Store.
// If metrics is nil, operations pass through directly.
func NewInstrumentedStore(store Store, metrics MetricsRecorder) *InstrumentedStore {
	return &InstrumentedStore{
		store:   store,
		metrics: metrics,
	}
}

func (s *InstrumentedStore) record(op string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordOperation(op, time.Since(start).Seconds(), err == nil)
	}
}

func (s *InstrumentedStore) Scan(ctx context.Context, cursor, match string, count int64) ([]string, string, error) {
	start := time.Now()
	keys, next, err := s.store.Scan(ctx, cursor, match, count)
	s.record("scan", start, err)
	return keys, next, err
}

func (s *InstrumentedStore) SScan(ctx context.Context, key, cursor, match string, count int64) ([]string, string, error) {
	start := time.Now()
	members, next, err := s.store.SScan(ctx, key, cursor, match, count)
	s.record("sscan", start, err)
	return members, next, err
}

func (s *InstrumentedStore) Type(ctx context.Context, key string) (KeyType, error) {
	start := time.Now()
	t, err := s.store.Type(ctx, key)
	s.record("type", start, err)
	return t, err
}

func (s *InstrumentedStore) Exists(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	ok, err := s.store.Exists(ctx, key)
	s.record("exists", start, err)
	return ok, err
}

func (s *InstrumentedStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	start := time.Now()
	fields, err := s.store.HGetAll(ctx, key)
	s.record("hgetall", start, err)
	return fields, err
}

func (s *InstrumentedStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	start := time.Now()
	err := s.store.HSet(ctx, key, fields)
	s.record("hset", start, err)
	return err
}

func (s *InstrumentedStore) Del(ctx context.Context, keys ...string) (int64, error) {
	start := time.Now()
	n, err := s.store.Del(ctx, keys...)
	s.record("del", start, err)
	return n, err
}

func (s *InstrumentedStore) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	start := time.Now()
	n, err := s.store.SAdd(ctx, key, members...)
	s.record("sadd", start, err)
	return n, err
}

func (s *InstrumentedStore) SRem(ctx context.Context, key string, members ...string) (int64, error) {
	start := time.Now()
	n, err := s.store.SRem(ctx, key, members...)
	s.record("srem", start, err)
	return n, err
}

func (s *InstrumentedStore) SIsMember(ctx context.Context, key, member string) (bool, error) {
	start := time.Now()
	ok, err := s.store.SIsMember(ctx, key, member)
	s.record("sismember", start, err)
	return ok, err
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	start := time.Now()
	err := s.store.Ping(ctx)
	s.record("ping", start, err)
	return err
}

// Close releases resources held by the store.
func (s *InstrumentedStore) Close() error {
	return s.store.Close()
}

// Ensure InstrumentedStore implements Store.
var _ Store = (*InstrumentedStore)(nil)
