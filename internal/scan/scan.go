// Package scan provides lazy, restartable cursors over the key-value and
// triple stores.
//
// A cursor yields batches until Done reports true. Reset starts over from
// the beginning; cursors are not resumable across processes. Batches may
// repeat entries when the underlying store is mutated mid-scan, so callers
// must process entries idempotently.
//
//	cur := scan.NewKeyCursor(store, "ontology_job:*", 500)
//	err := scan.ForEach(ctx, cur, func(key string) error {
//	    ...
//	})
package scan

import (
	"context"
)

// DefaultBatchSize is used when a cursor is created with a non-positive size.
const DefaultBatchSize = 500

// Cursor yields batches of T.
type Cursor[T any] interface {
	// Next returns the next batch. A batch may be empty while Done is false.
	Next(ctx context.Context) ([]T, error)
	// Done reports whether the cursor is exhausted.
	Done() bool
	// Reset restarts the cursor from the beginning.
	Reset()
}

// ForEach calls fn for every entry the cursor yields. It stops at the first
// error returned by the cursor or fn, or when ctx is done.
func ForEach[T any](ctx context.Context, c Cursor[T], fn func(T) error) error {
	for !c.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := c.Next(ctx)
		if err != nil {
			return err
		}
		for _, item := range batch {
			if err := fn(item); err != nil {
				return err
			}
		}
	}
	return nil
}

// Collect drains the cursor into a slice. Intended for bounded scans such
// as set-key discovery.
func Collect[T any](ctx context.Context, c Cursor[T]) ([]T, error) {
	var out []T
	err := ForEach(ctx, c, func(item T) error {
		out = append(out, item)
		return nil
	})
	return out, err
}

func batchSize(n int) int {
	if n <= 0 {
		return DefaultBatchSize
	}
	return n
}
