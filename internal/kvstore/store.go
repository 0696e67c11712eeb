// Package kvstore defines the key-value Store interface the index janitor
// runs against.
//
// The interface mirrors the subset of Redis semantics the janitor needs:
// cursor-based key enumeration, hashes for primary records and sets for
// secondary indexes. Two drivers exist: kvstore/redis for Redis-protocol
// servers and kvstore/oxia, which lays hashes and sets out as Oxia records.
//
// # Cursors
//
// Scan and SScan return an opaque cursor. Start with CursorStart and stop
// when the returned cursor equals CursorStart again. A cursor is only valid
// for the store that produced it and may return keys more than once when
// the keyspace changes underneath it; callers must treat every key
// idempotently.
//
// # Patterns
//
// Match patterns use glob syntax: '*' and '?' wildcards, '[...]' classes and
// '\' escapes. Use EscapePattern to embed a literal id in a pattern.
package kvstore

import (
	"context"
	"errors"
	"strings"
)

// Common errors returned by Store implementations.
var (
	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("kvstore: store closed")

	// ErrWrongType is returned when a hash operation hits a set or vice versa.
	ErrWrongType = errors.New("kvstore: wrong type")
)

// CursorStart begins a scan; a scan is complete when it is returned again.
const CursorStart = ""

// KeyType is the type of the value stored at a key.
type KeyType string

const (
	TypeNone   KeyType = "none"
	TypeString KeyType = "string"
	TypeHash   KeyType = "hash"
	TypeSet    KeyType = "set"
)

// Store is the interface for key-value operations.
//
// Removal operations are idempotent: deleting a missing key or removing a
// non-member from a set returns a zero count, not an error.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// Scan returns a batch of keys matching the pattern and the cursor for
	// the next batch. count is a hint for the batch size.
	Scan(ctx context.Context, cursor, match string, count int64) ([]string, string, error)

	// SScan is Scan over the members of the set at key.
	SScan(ctx context.Context, key, cursor, match string, count int64) ([]string, string, error)

	// Type returns the type of the value at key, TypeNone if absent.
	Type(ctx context.Context, key string) (KeyType, error)

	// Exists reports whether key holds any value.
	Exists(ctx context.Context, key string) (bool, error)

	// HGetAll returns all fields of the hash at key.
	// A missing key yields an empty map.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// HSet sets fields on the hash at key, creating it if needed.
	HSet(ctx context.Context, key string, fields map[string]string) error

	// Del removes keys and returns how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)

	// SAdd adds members to the set at key and returns how many were new.
	SAdd(ctx context.Context, key string, members ...string) (int64, error)

	// SRem removes members from the set at key and returns how many were present.
	// Removing the last member removes the key.
	SRem(ctx context.Context, key string, members ...string) (int64, error)

	// SIsMember reports whether member is in the set at key.
	SIsMember(ctx context.Context, key, member string) (bool, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the store.
	// After Close is called, all operations return ErrStoreClosed.
	Close() error
}

// EscapePattern escapes glob metacharacters so s matches only itself.
func EscapePattern(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
