// Package objectstore defines the archive storage used for run reports.
//
// Reports are small, write-once documents, so the interface covers whole-object
// writes and reads plus listing for retention. Keys are produced by
// [ReportKey] so that archives partition by report kind and day:
//
//	reports/purge/date=2026/10/19/3f1c....json.gz
//
// # Usage
//
//	store, err := s3.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	err = store.Put(ctx, key, body, size, objectstore.PutOptions{
//	    ContentType:     "application/json",
//	    ContentEncoding: "gzip",
//	    IfNoneMatch:     "*",
//	})
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Common errors returned by Store implementations.
var (
	// ErrNotFound is returned when the requested object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrAlreadyExists is returned when IfNoneMatch is "*" and the key is taken.
	ErrAlreadyExists = errors.New("object already exists")

	// ErrBucketNotFound is returned when the configured bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrAccessDenied is returned when the credentials lack permission for the operation.
	ErrAccessDenied = errors.New("access denied")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("objectstore: store is closed")
)

// ObjectError wraps an error with the object key for context.
type ObjectError struct {
	Op  string // Operation that failed (e.g., "Put", "Get", "Delete")
	Key string // Object key
	Err error  // Underlying error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("objectstore: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time

	// Metadata contains user-defined key-value metadata. Only Head fills it.
	Metadata map[string]string
}

// PutOptions configures a Put.
type PutOptions struct {
	ContentType     string
	ContentEncoding string

	// Metadata is stored with the object. Keys are case-insensitive.
	Metadata map[string]string

	// IfNoneMatch set to "*" makes Put fail with ErrAlreadyExists when the
	// key is taken.
	IfNoneMatch string
}

// Store is the interface for archive storage.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Put writes an object. size must equal the number of bytes the reader yields.
	Put(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error

	// Get opens an object for reading. The caller closes the reader.
	// Returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Head returns object metadata without the body.
	Head(ctx context.Context, key string) (ObjectInfo, error)

	// Delete removes an object. Deleting an absent key succeeds.
	Delete(ctx context.Context, key string) error

	// List returns every object under prefix, ordered by key.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Close releases resources. Later calls fail with ErrClosed.
	Close() error
}
