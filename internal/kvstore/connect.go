package kvstore

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dray-io/storejanitor/internal/storeerr"
)

// PingOptions controls WaitReady.
type PingOptions struct {
	// Retries is how many times a failed ping is retried.
	// Default: 3
	Retries int

	// InitialInterval is the first backoff delay.
	// Default: 500ms
	InitialInterval time.Duration
}

// WaitReady pings the store with exponential backoff. When every attempt
// fails it returns a *storeerr.ConnectionError naming endpoint. A closed
// store is not retried.
func WaitReady(ctx context.Context, s Store, endpoint string, opts PingOptions) error {
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}

	op := func() error {
		err := s.Ping(ctx)
		if errors.Is(err, ErrStoreClosed) {
			return backoff.Permanent(err)
		}
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = opts.InitialInterval
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(opts.Retries)), ctx)

	if err := backoff.Retry(op, b); err != nil {
		return storeerr.Connection(storeerr.StoreKV, endpoint, err)
	}
	return nil
}
