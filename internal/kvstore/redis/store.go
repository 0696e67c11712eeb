// Package redis implements the kvstore.Store interface for Redis-protocol
// servers using go-redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dray-io/storejanitor/internal/kvstore"
	"github.com/dray-io/storejanitor/internal/storeerr"
)

// Config configures a Redis store.
type Config struct {
	// Addr is the server address (e.g., "localhost:6379").
	Addr string

	// Username and Password authenticate with ACL or legacy AUTH.
	Username string
	Password string

	// DB selects the logical database.
	DB int

	// DialTimeout bounds connection establishment.
	// Default: 5 seconds.
	DialTimeout time.Duration

	// ReadTimeout and WriteTimeout bound a single command.
	// Default: 3 seconds.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Store implements kvstore.Store on a Redis server.
type Store struct {
	client *goredis.Client
	addr   string
}

// New creates a Redis store. It does not contact the server; call Ping to
// verify connectivity.
func New(cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis: address is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 3 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 3 * time.Second
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	return &Store{client: client, addr: cfg.Addr}, nil
}

// wrapError maps go-redis errors onto kvstore errors. Transport failures
// become connection errors so callers abort instead of recording an item.
func (s *Store) wrapError(op string, err error) error {
	var netErr net.Error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, goredis.ErrClosed):
		return kvstore.ErrStoreClosed
	case errors.As(err, &netErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return storeerr.Connection(storeerr.StoreKV, s.addr, fmt.Errorf("redis: %s: %w", op, err))
	case strings.HasPrefix(err.Error(), "WRONGTYPE"):
		return fmt.Errorf("redis: %s: %w", op, kvstore.ErrWrongType)
	default:
		return fmt.Errorf("redis: %s failed: %w", op, err)
	}
}

func parseCursor(cursor string) (uint64, error) {
	if cursor == kvstore.CursorStart {
		return 0, nil
	}
	c, err := strconv.ParseUint(cursor, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis: invalid cursor %q: %w", cursor, err)
	}
	return c, nil
}

func formatCursor(c uint64) string {
	if c == 0 {
		return kvstore.CursorStart
	}
	return strconv.FormatUint(c, 10)
}

// Scan issues SCAN cursor MATCH pattern COUNT n.
func (s *Store) Scan(ctx context.Context, cursor, match string, count int64) ([]string, string, error) {
	c, err := parseCursor(cursor)
	if err != nil {
		return nil, kvstore.CursorStart, err
	}
	keys, next, err := s.client.Scan(ctx, c, match, count).Result()
	if err != nil {
		return nil, kvstore.CursorStart, s.wrapError("scan", err)
	}
	return keys, formatCursor(next), nil
}

// SScan issues SSCAN key cursor MATCH pattern COUNT n.
func (s *Store) SScan(ctx context.Context, key, cursor, match string, count int64) ([]string, string, error) {
	c, err := parseCursor(cursor)
	if err != nil {
		return nil, kvstore.CursorStart, err
	}
	members, next, err := s.client.SScan(ctx, key, c, match, count).Result()
	if err != nil {
		return nil, kvstore.CursorStart, s.wrapError("sscan", err)
	}
	return members, formatCursor(next), nil
}

func (s *Store) Type(ctx context.Context, key string) (kvstore.KeyType, error) {
	t, err := s.client.Type(ctx, key).Result()
	if err != nil {
		return kvstore.TypeNone, s.wrapError("type", err)
	}
	switch t {
	case "hash":
		return kvstore.TypeHash, nil
	case "set":
		return kvstore.TypeSet, nil
	case "string":
		return kvstore.TypeString, nil
	case "none":
		return kvstore.TypeNone, nil
	default:
		return kvstore.KeyType(t), nil
	}
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, s.wrapError("exists", err)
	}
	return n > 0, nil
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, s.wrapError("hgetall", err)
	}
	return fields, nil
}

func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	values := make([]any, 0, len(fields)*2)
	for f, v := range fields {
		values = append(values, f, v)
	}
	return s.wrapError("hset", s.client.HSet(ctx, key, values...).Err())
}

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	return n, s.wrapError("del", err)
}

func (s *Store) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	n, err := s.client.SAdd(ctx, key, toAny(members)...).Result()
	return n, s.wrapError("sadd", err)
}

func (s *Store) SRem(ctx context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	n, err := s.client.SRem(ctx, key, toAny(members)...).Result()
	return n, s.wrapError("srem", err)
}

func (s *Store) SIsMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, key, member).Result()
	return ok, s.wrapError("sismember", err)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.wrapError("ping", s.client.Ping(ctx).Err())
}

// Close releases the connection pool.
func (s *Store) Close() error {
	err := s.client.Close()
	if errors.Is(err, goredis.ErrClosed) {
		return nil
	}
	return err
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

var _ kvstore.Store = (*Store)(nil)
