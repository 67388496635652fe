package memory

import (
	"context"
	"sync"
	"time"
)

// WindowStore tracks the debounce window expiry per conversation. At most
// one active window exists per key.
type WindowStore struct {
	mu      sync.Mutex
	windows map[string]time.Time // key -> expiry
	now     func() time.Time
}

// NewWindowStore creates an empty window store.
func NewWindowStore() *WindowStore {
	return &WindowStore{
		windows: make(map[string]time.Time),
		now:     time.Now,
	}
}

// OpenOrExtend opens a window when none is active and returns isNew=true.
// While a window is open it returns the existing expiry unchanged, so a
// burst of messages shares one reply cycle.
func (w *WindowStore) OpenOrExtend(ctx context.Context, key string, delay time.Duration) (bool, time.Time, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if expiry, ok := w.windows[key]; ok && now.Before(expiry) {
		return false, expiry, nil
	}
	expiry := now.Add(delay)
	w.windows[key] = expiry
	return true, expiry, nil
}

// Clear removes the window once drained.
func (w *WindowStore) Clear(ctx context.Context, key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.windows, key)
	return nil
}
