package kvstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// MockStore implements Store in memory for testing.
// It is exported so that tests in other packages can use it.
type MockStore struct {
	mu      sync.RWMutex
	hashes  map[string]map[string]string
	sets    map[string]map[string]struct{}
	closed  bool
	pingErr error
	faults  map[string]error
	calls   map[string]int
}

// NewMockStore creates a new MockStore for testing.
func NewMockStore() *MockStore {
	return &MockStore{
		hashes: make(map[string]map[string]string),
		sets:   make(map[string]map[string]struct{}),
		faults: make(map[string]error),
		calls:  make(map[string]int),
	}
}

// SetPingError makes Ping return err.
func (m *MockStore) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingErr = err
}

// InjectFault makes operation op ("del", "srem", "hgetall", "scan", ...)
// on key fail with err. An empty key matches every key.
func (m *MockStore) InjectFault(op, key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op+"\x00"+key] = err
}

// Calls returns how many times op was invoked.
func (m *MockStore) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

// begin records the call and returns an injected fault, if any.
// Caller must hold m.mu.
func (m *MockStore) begin(op, key string) error {
	m.calls[op]++
	if m.closed {
		return ErrStoreClosed
	}
	if err, ok := m.faults[op+"\x00"+key]; ok {
		return err
	}
	if err, ok := m.faults[op+"\x00"]; ok {
		return err
	}
	return nil
}

func (m *MockStore) Scan(_ context.Context, cursor, match string, count int64) ([]string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("scan", ""); err != nil {
		return nil, CursorStart, err
	}

	all := make([]string, 0, len(m.hashes)+len(m.sets))
	for k := range m.hashes {
		all = append(all, k)
	}
	for k := range m.sets {
		all = append(all, k)
	}
	return page(all, cursor, match, count)
}

func (m *MockStore) SScan(_ context.Context, key, cursor, match string, count int64) ([]string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("sscan", key); err != nil {
		return nil, CursorStart, err
	}
	if _, ok := m.hashes[key]; ok {
		return nil, CursorStart, ErrWrongType
	}

	members := make([]string, 0, len(m.sets[key]))
	for member := range m.sets[key] {
		members = append(members, member)
	}
	return page(members, cursor, match, count)
}

// page returns the sorted entries after the cursor position. The cursor
// carries the last returned entry, so entries added or removed between
// calls do not shift the page boundaries.
func page(entries []string, cursor, match string, count int64) ([]string, string, error) {
	sort.Strings(entries)
	if count <= 0 {
		count = 10
	}

	after, resumed := strings.CutPrefix(cursor, "k")
	var out []string
	var last string
	for _, e := range entries {
		if resumed && e <= after {
			continue
		}
		last = e
		if match != "" {
			ok, err := doublestar.Match(match, e)
			if err != nil {
				return nil, CursorStart, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, e)
		if int64(len(out)) >= count {
			break
		}
	}

	if last == "" || last == entries[len(entries)-1] {
		return out, CursorStart, nil
	}
	return out, "k" + last, nil
}

func (m *MockStore) Type(_ context.Context, key string) (KeyType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("type", key); err != nil {
		return TypeNone, err
	}
	if _, ok := m.hashes[key]; ok {
		return TypeHash, nil
	}
	if _, ok := m.sets[key]; ok {
		return TypeSet, nil
	}
	return TypeNone, nil
}

func (m *MockStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("exists", key); err != nil {
		return false, err
	}
	_, isHash := m.hashes[key]
	_, isSet := m.sets[key]
	return isHash || isSet, nil
}

func (m *MockStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("hgetall", key); err != nil {
		return nil, err
	}
	if _, ok := m.sets[key]; ok {
		return nil, ErrWrongType
	}
	out := make(map[string]string, len(m.hashes[key]))
	for f, v := range m.hashes[key] {
		out[f] = v
	}
	return out, nil
}

func (m *MockStore) HSet(_ context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("hset", key); err != nil {
		return err
	}
	if _, ok := m.sets[key]; ok {
		return ErrWrongType
	}
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		m.hashes[key] = h
	}
	for f, v := range fields {
		h[f] = v
	}
	return nil
}

func (m *MockStore) Del(_ context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, key := range keys {
		if err := m.begin("del", key); err != nil {
			return n, err
		}
		if _, ok := m.hashes[key]; ok {
			delete(m.hashes, key)
			n++
		}
		if _, ok := m.sets[key]; ok {
			delete(m.sets, key)
			n++
		}
	}
	return n, nil
}

func (m *MockStore) SAdd(_ context.Context, key string, members ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("sadd", key); err != nil {
		return 0, err
	}
	if _, ok := m.hashes[key]; ok {
		return 0, ErrWrongType
	}
	s, ok := m.sets[key]
	if !ok {
		s = make(map[string]struct{}, len(members))
		m.sets[key] = s
	}
	var n int64
	for _, member := range members {
		if _, ok := s[member]; !ok {
			s[member] = struct{}{}
			n++
		}
	}
	return n, nil
}

func (m *MockStore) SRem(_ context.Context, key string, members ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("srem", key); err != nil {
		return 0, err
	}
	if _, ok := m.hashes[key]; ok {
		return 0, ErrWrongType
	}
	s := m.sets[key]
	var n int64
	for _, member := range members {
		if _, ok := s[member]; ok {
			delete(s, member)
			n++
		}
	}
	if s != nil && len(s) == 0 {
		delete(m.sets, key)
	}
	return n, nil
}

func (m *MockStore) SIsMember(_ context.Context, key, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("sismember", key); err != nil {
		return false, err
	}
	_, ok := m.sets[key][member]
	return ok, nil
}

func (m *MockStore) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("ping", ""); err != nil {
		return err
	}
	return m.pingErr
}

func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Store = (*MockStore)(nil)
