// Package storeerr defines the failure taxonomy shared by the purge and
// reconcile passes.
//
// A ConnectionError means a store could not be reached at all and the run
// must stop. An ItemError means a single delete or removal failed; callers
// record it in the run report and keep going.
package storeerr

import (
	"errors"
	"fmt"
)

// Store names used in ConnectionError.
const (
	StoreTriple = "triplestore"
	StoreKV     = "kvstore"
)

// ConnectionError reports that a store was unreachable.
type ConnectionError struct {
	Store    string // StoreTriple or StoreKV
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("%s: connection failed: %v", e.Store, e.Err)
	}
	return fmt.Sprintf("%s: connection to %s failed: %v", e.Store, e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ItemError reports a failed operation on a single graph, key, or member.
type ItemError struct {
	Op  string // e.g. "drop-graph", "del", "srem"
	ID  string
	Err error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.ID, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// IsConnection reports whether err is or wraps a ConnectionError.
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// Connection wraps err as a ConnectionError unless it already is one.
func Connection(store, endpoint string, err error) error {
	if err == nil || IsConnection(err) {
		return err
	}
	return &ConnectionError{Store: store, Endpoint: endpoint, Err: err}
}
