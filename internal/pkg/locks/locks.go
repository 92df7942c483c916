// Package locks provides a per-key exclusive section with a bounded wait.
// The transitioner serializes all state changes for one payment through it;
// everything else in the reconciliation core is lock-free.
package locks

import (
	"context"
	"errors"
	"time"
)

// ErrLockTimeout is returned when the lock could not be acquired within the
// caller's wait budget. Callers translate it into a retryable response so
// the processor redelivers the webhook instead of losing it.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Lock is a held exclusive section. Release is idempotent.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out exclusive sections keyed by an arbitrary string, one
// payment identifier per key. Acquire blocks up to wait; ttl bounds how
// long a crashed holder can keep the key locked.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl, wait time.Duration) (Lock, error)
}
