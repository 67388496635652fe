package memory

import (
	"context"
	"sync"
	"time"
)

// LockStore implements per-conversation mutual exclusion with a TTL
// backstop. Acquire is set-if-absent; an expired holder is treated as
// absent.
type LockStore struct {
	mu    sync.Mutex
	locks map[string]time.Time // key -> expiry
	now   func() time.Time
}

// NewLockStore creates an empty lock store.
func NewLockStore() *LockStore {
	return &LockStore{
		locks: make(map[string]time.Time),
		now:   time.Now,
	}
}

// Acquire returns true when the caller obtained the lock. A held,
// unexpired lock makes Acquire return false without error; contention is
// benign.
func (l *LockStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expiry, ok := l.locks[key]; ok && now.Before(expiry) {
		return false, nil
	}
	l.locks[key] = now.Add(ttl)
	return true, nil
}

// Release frees the lock. Releasing an unheld or expired lock is a no-op.
func (l *LockStore) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, key)
	return nil
}
