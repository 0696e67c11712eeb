package scan

import (
	"context"
	"fmt"

	"github.com/dray-io/storejanitor/internal/kvstore"
)

// KeyCursor iterates keys matching a pattern with SCAN.
type KeyCursor struct {
	store  kvstore.Store
	match  string
	count  int64
	cursor string
	done   bool
}

// NewKeyCursor creates a cursor over keys matching the glob pattern.
func NewKeyCursor(store kvstore.Store, match string, count int) *KeyCursor {
	return &KeyCursor{
		store:  store,
		match:  match,
		count:  int64(batchSize(count)),
		cursor: kvstore.CursorStart,
	}
}

// Next returns the next batch of keys.
func (c *KeyCursor) Next(ctx context.Context) ([]string, error) {
	if c.done {
		return nil, nil
	}
	keys, next, err := c.store.Scan(ctx, c.cursor, c.match, c.count)
	if err != nil {
		return nil, fmt.Errorf("scan %q: %w", c.match, err)
	}
	c.cursor = next
	c.done = next == kvstore.CursorStart
	return keys, nil
}

// Done reports whether the scan completed.
func (c *KeyCursor) Done() bool { return c.done }

// Reset restarts the scan.
func (c *KeyCursor) Reset() {
	c.cursor = kvstore.CursorStart
	c.done = false
}

// MemberCursor iterates the members of one set with SSCAN.
type MemberCursor struct {
	store  kvstore.Store
	key    string
	count  int64
	cursor string
	done   bool
}

// NewMemberCursor creates a cursor over the members of the set at key.
func NewMemberCursor(store kvstore.Store, key string, count int) *MemberCursor {
	return &MemberCursor{
		store:  store,
		key:    key,
		count:  int64(batchSize(count)),
		cursor: kvstore.CursorStart,
	}
}

// Next returns the next batch of members.
func (c *MemberCursor) Next(ctx context.Context) ([]string, error) {
	if c.done {
		return nil, nil
	}
	members, next, err := c.store.SScan(ctx, c.key, c.cursor, "", c.count)
	if err != nil {
		return nil, fmt.Errorf("sscan %s: %w", c.key, err)
	}
	c.cursor = next
	c.done = next == kvstore.CursorStart
	return members, nil
}

// Done reports whether the scan completed.
func (c *MemberCursor) Done() bool { return c.done }

// Reset restarts the scan.
func (c *MemberCursor) Reset() {
	c.cursor = kvstore.CursorStart
	c.done = false
}

var (
	_ Cursor[string] = (*KeyCursor)(nil)
	_ Cursor[string] = (*MemberCursor)(nil)
)
