package state

import (
	"context"
	"errors"
	"time"
)

// lockRetryInterval is the initial wait between attempts in AcquireLock.
const lockRetryInterval = 5 * time.Millisecond

// maxLockRetryInterval caps the backoff in AcquireLock.
const maxLockRetryInterval = 200 * time.Millisecond

// AcquireLock blocks until the lock is acquired or ctx is done.
// Errors other than ErrLockHeld are returned immediately.
func AcquireLock(ctx context.Context, store StateStore, key string, ttl time.Duration) (Lock, error) {
	wait := lockRetryInterval
	for {
		lock, err := store.Lock(ctx, key, ttl)
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, ErrLockHeld) {
			return nil, err
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		wait *= 2
		if wait > maxLockRetryInterval {
			wait = maxLockRetryInterval
		}
	}
}
