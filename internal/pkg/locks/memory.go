package locks

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker implements Locker with an in-process mutex table. It is the
// right choice for single-node deployments and is what the test suite uses.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]chan struct{})}
}

type memoryLock struct {
	locker   *MemoryLocker
	key      string
	released sync.Once
}

func (l *MemoryLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Acquire takes the buffered-channel slot for key, waiting up to wait.
// The ttl parameter is ignored: an in-process holder cannot outlive the
// process that would observe the expiry.
func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl, wait time.Duration) (Lock, error) {
	ch := l.slot(key)

	select {
	case ch <- struct{}{}:
		return &memoryLock{locker: l, key: key}, nil
	default:
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return &memoryLock{locker: l, key: key}, nil
	case <-timer.C:
		return nil, ErrLockTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (k *memoryLock) Release(ctx context.Context) error {
	k.released.Do(func() {
		<-k.locker.slot(k.key)
	})
	return nil
}
