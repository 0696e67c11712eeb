// Package oxia implements the kvstore.Store interface on top of Oxia.
//
// Oxia has no native hashes or sets, so the driver lays them out as plain
// records inside the configured namespace:
//
//	/kv/k/<key>            {"type":"hash","fields":{...}} or {"type":"set"}
//	/kv/m/<key>/<member>   one empty record per set member
//
// Keys and members are escaped so they never contain '/', which keeps every
// record a direct child of its prefix under Oxia's hierarchical key order.
// Hash updates use compare-and-set on the record version.
package oxia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	oxiaclient "github.com/oxia-db/oxia/oxia"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dray-io/storejanitor/internal/kvstore"
	"github.com/dray-io/storejanitor/internal/storeerr"
)

const (
	typePrefix   = "/kv/k/"
	memberPrefix = "/kv/m/"
	pingKey      = "/kv/ping"

	// casAttempts bounds read-modify-write retries on version conflicts.
	casAttempts = 5
)

// Config configures the Oxia key-value store.
type Config struct {
	// ServiceAddress is the Oxia service endpoint (e.g., "localhost:6648").
	ServiceAddress string

	// Namespace is the Oxia namespace to use (e.g., "janitor/prod").
	Namespace string

	// RequestTimeout is the timeout for individual requests.
	// Default: 30 seconds.
	RequestTimeout time.Duration
}

// Store implements kvstore.Store using Oxia.
type Store struct {
	client oxiaclient.SyncClient
	addr   string

	mu     sync.RWMutex
	closed bool
}

type record struct {
	Type   kvstore.KeyType   `json:"type"`
	Fields map[string]string `json:"fields,omitempty"`
}

type entry struct {
	key   string
	value []byte
}

// New creates a new Oxia key-value store.
func New(_ context.Context, cfg Config) (*Store, error) {
	if cfg.ServiceAddress == "" {
		return nil, errors.New("oxia: service address is required")
	}
	if cfg.Namespace == "" {
		return nil, errors.New("oxia: namespace is required")
	}

	opts := []oxiaclient.ClientOption{
		oxiaclient.WithNamespace(cfg.Namespace),
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, oxiaclient.WithRequestTimeout(cfg.RequestTimeout))
	}

	client, err := oxiaclient.NewSyncClient(cfg.ServiceAddress, opts...)
	if err != nil {
		return nil, fmt.Errorf("oxia: failed to create client: %w", err)
	}
	return &Store{client: client, addr: cfg.ServiceAddress}, nil
}

func (s *Store) checkClosed() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return kvstore.ErrStoreClosed
	}
	return nil
}

// clientError wraps a failed client call. Unavailable servers and expired
// deadlines are reported as connection errors.
func (s *Store) clientError(op string, err error) error {
	err = fmt.Errorf("oxia: %s failed: %w", op, err)
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded:
			return storeerr.Connection(storeerr.StoreKV, s.addr, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return storeerr.Connection(storeerr.StoreKV, s.addr, err)
	}
	return err
}

// escape makes a key or member safe to embed as one path segment.
func escape(s string) string {
	return strings.NewReplacer("%", "%25", "/", "%2F").Replace(s)
}

func unescape(s string) string {
	return strings.NewReplacer("%2F", "/", "%25", "%").Replace(s)
}

func typeKey(key string) string {
	return typePrefix + escape(key)
}

func membersPrefix(key string) string {
	return memberPrefix + escape(key) + "/"
}

func memberKey(key, member string) string {
	return membersPrefix(key) + escape(member)
}

// childrenEnd is the exclusive end key for direct children of prefix under
// Oxia's hierarchical ordering.
func childrenEnd(prefix string) string {
	return prefix + "/"
}

func (s *Store) get(ctx context.Context, key string) (record, int64, bool, error) {
	_, value, version, err := s.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, oxiaclient.ErrKeyNotFound) {
			return record{}, 0, false, nil
		}
		return record{}, 0, false, s.clientError("get", err)
	}
	var r record
	if err := json.Unmarshal(value, &r); err != nil {
		return record{}, 0, false, fmt.Errorf("oxia: decode %q: %w", key, err)
	}
	return r, version.VersionId, true, nil
}

// list returns up to limit records in [start, end).
func (s *Store) list(ctx context.Context, start, end string, limit int) ([]entry, error) {
	results := s.client.RangeScan(ctx, start, end)

	var out []entry
	for result := range results {
		if result.Err != nil {
			return nil, s.clientError("list", result.Err)
		}
		out = append(out, entry{key: result.Key, value: result.Value})
		if limit > 0 && len(out) >= limit {
			go drainRangeScan(results)
			return out, nil
		}
	}
	return out, nil
}

func drainRangeScan(results <-chan oxiaclient.GetResult) {
	for range results {
	}
}

// scanChildren pages through the direct children of prefix, filtering the
// decoded child names by match. The cursor carries the next start key.
func (s *Store) scanChildren(ctx context.Context, prefix, cursor, match string, count int64) ([]string, string, error) {
	if count <= 0 {
		count = 10
	}
	start := prefix
	if cursor != kvstore.CursorStart {
		after, ok := strings.CutPrefix(cursor, "k")
		if !ok {
			return nil, kvstore.CursorStart, fmt.Errorf("oxia: invalid cursor %q", cursor)
		}
		start = after
	}

	entries, err := s.list(ctx, start, childrenEnd(prefix), int(count))
	if err != nil {
		return nil, kvstore.CursorStart, err
	}

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		name := unescape(strings.TrimPrefix(e.key, prefix))
		if match != "" {
			ok, err := doublestar.Match(match, name)
			if err != nil {
				return nil, kvstore.CursorStart, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, name)
	}

	if int64(len(entries)) < count {
		return out, kvstore.CursorStart, nil
	}
	return out, "k" + entries[len(entries)-1].key + "\x00", nil
}

func (s *Store) Scan(ctx context.Context, cursor, match string, count int64) ([]string, string, error) {
	if err := s.checkClosed(); err != nil {
		return nil, kvstore.CursorStart, err
	}
	return s.scanChildren(ctx, typePrefix, cursor, match, count)
}

func (s *Store) SScan(ctx context.Context, key, cursor, match string, count int64) ([]string, string, error) {
	if err := s.checkClosed(); err != nil {
		return nil, kvstore.CursorStart, err
	}
	r, _, ok, err := s.get(ctx, typeKey(key))
	if err != nil {
		return nil, kvstore.CursorStart, err
	}
	if ok && r.Type != kvstore.TypeSet {
		return nil, kvstore.CursorStart, kvstore.ErrWrongType
	}
	return s.scanChildren(ctx, membersPrefix(key), cursor, match, count)
}

func (s *Store) Type(ctx context.Context, key string) (kvstore.KeyType, error) {
	if err := s.checkClosed(); err != nil {
		return kvstore.TypeNone, err
	}
	r, _, ok, err := s.get(ctx, typeKey(key))
	if err != nil || !ok {
		return kvstore.TypeNone, err
	}
	return r.Type, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	t, err := s.Type(ctx, key)
	return t != kvstore.TypeNone, err
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}
	r, _, ok, err := s.get(ctx, typeKey(key))
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]string{}, nil
	}
	if r.Type != kvstore.TypeHash {
		return nil, kvstore.ErrWrongType
	}
	if r.Fields == nil {
		return map[string]string{}, nil
	}
	return r.Fields, nil
}

func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if err := s.checkClosed(); err != nil {
		return err
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		r, version, ok, err := s.get(ctx, typeKey(key))
		if err != nil {
			return err
		}
		if ok && r.Type != kvstore.TypeHash {
			return kvstore.ErrWrongType
		}

		r.Type = kvstore.TypeHash
		if r.Fields == nil {
			r.Fields = make(map[string]string, len(fields))
		}
		for f, v := range fields {
			r.Fields[f] = v
		}
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("oxia: encode %q: %w", key, err)
		}

		var opt oxiaclient.PutOption = oxiaclient.ExpectedRecordNotExists()
		if ok {
			opt = oxiaclient.ExpectedVersionId(version)
		}
		_, _, err = s.client.Put(ctx, typeKey(key), data, opt)
		if err == nil {
			return nil
		}
		if !errors.Is(err, oxiaclient.ErrUnexpectedVersionId) {
			return s.clientError("put", err)
		}
	}
	return fmt.Errorf("oxia: hset %q: too many concurrent updates", key)
}

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	if err := s.checkClosed(); err != nil {
		return 0, err
	}

	var n int64
	for _, key := range keys {
		r, _, ok, err := s.get(ctx, typeKey(key))
		if err != nil {
			return n, err
		}
		if !ok {
			continue
		}
		if r.Type == kvstore.TypeSet {
			if err := s.deleteMembers(ctx, key); err != nil {
				return n, err
			}
		}
		if err := s.delete(ctx, typeKey(key)); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Store) deleteMembers(ctx context.Context, key string) error {
	prefix := membersPrefix(key)
	for {
		entries, err := s.list(ctx, prefix, childrenEnd(prefix), 100)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		for _, e := range entries {
			if err := s.delete(ctx, e.key); err != nil {
				return err
			}
		}
	}
}

// delete removes a record; a missing record is not an error.
func (s *Store) delete(ctx context.Context, key string) error {
	err := s.client.Delete(ctx, key)
	if err != nil && !errors.Is(err, oxiaclient.ErrKeyNotFound) {
		return s.clientError("delete", err)
	}
	return nil
}

func (s *Store) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	if err := s.checkClosed(); err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}

	r, _, ok, err := s.get(ctx, typeKey(key))
	if err != nil {
		return 0, err
	}
	if ok && r.Type != kvstore.TypeSet {
		return 0, kvstore.ErrWrongType
	}
	if !ok {
		data, _ := json.Marshal(record{Type: kvstore.TypeSet})
		_, _, err := s.client.Put(ctx, typeKey(key), data, oxiaclient.ExpectedRecordNotExists())
		if err != nil && !errors.Is(err, oxiaclient.ErrUnexpectedVersionId) {
			return 0, s.clientError("put", err)
		}
	}

	var n int64
	for _, member := range members {
		_, _, err := s.client.Put(ctx, memberKey(key, member), []byte{}, oxiaclient.ExpectedRecordNotExists())
		switch {
		case err == nil:
			n++
		case errors.Is(err, oxiaclient.ErrUnexpectedVersionId):
			// already a member
		default:
			return n, s.clientError("put", err)
		}
	}
	return n, nil
}

func (s *Store) SRem(ctx context.Context, key string, members ...string) (int64, error) {
	if err := s.checkClosed(); err != nil {
		return 0, err
	}

	var n int64
	for _, member := range members {
		err := s.client.Delete(ctx, memberKey(key, member))
		switch {
		case err == nil:
			n++
		case errors.Is(err, oxiaclient.ErrKeyNotFound):
		default:
			return n, s.clientError("delete", err)
		}
	}

	if n > 0 {
		prefix := membersPrefix(key)
		remaining, err := s.list(ctx, prefix, childrenEnd(prefix), 1)
		if err != nil {
			return n, err
		}
		if len(remaining) == 0 {
			if err := s.delete(ctx, typeKey(key)); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

func (s *Store) SIsMember(ctx context.Context, key, member string) (bool, error) {
	if err := s.checkClosed(); err != nil {
		return false, err
	}
	_, _, _, err := s.client.Get(ctx, memberKey(key, member))
	if err != nil {
		if errors.Is(err, oxiaclient.ErrKeyNotFound) {
			return false, nil
		}
		return false, s.clientError("get", err)
	}
	return true, nil
}

// Ping reads a sentinel key; a missing key still proves the round trip.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.checkClosed(); err != nil {
		return err
	}
	_, _, _, err := s.client.Get(ctx, pingKey)
	if err != nil && !errors.Is(err, oxiaclient.ErrKeyNotFound) {
		return s.clientError("ping", err)
	}
	return nil
}

// Close releases resources held by the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

var _ kvstore.Store = (*Store)(nil)
