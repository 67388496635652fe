package memory

import (
	"context"
	"sync"

	"github.com/leadpulsehq/leadpulse/internal/bus"
)

// QueueStore buffers pending inbound messages per conversation in arrival
// order.
type QueueStore struct {
	mu     sync.Mutex
	queues map[string][]bus.PendingMessage
}

// NewQueueStore creates an empty queue store.
func NewQueueStore() *QueueStore {
	return &QueueStore{queues: make(map[string][]bus.PendingMessage)}
}

// Append adds a message to the tail of the conversation's queue.
func (q *QueueStore) Append(ctx context.Context, key string, msg bus.PendingMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queues[key] = append(q.queues[key], msg)
	return nil
}

// DrainAll atomically empties the queue and returns its prior contents in
// chronological order. Draining an empty queue returns nil; a duplicate
// scheduled trigger is safe.
func (q *QueueStore) DrainAll(ctx context.Context, key string) ([]bus.PendingMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	msgs := q.queues[key]
	if len(msgs) == 0 {
		return nil, nil
	}
	delete(q.queues, key)
	return msgs, nil
}

// Requeue prepends a failed batch ahead of messages that arrived after the
// drain, preserving overall chronological order.
func (q *QueueStore) Requeue(ctx context.Context, key string, msgs []bus.PendingMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	merged := make([]bus.PendingMessage, 0, len(msgs)+len(q.queues[key]))
	merged = append(merged, msgs...)
	merged = append(merged, q.queues[key]...)
	q.queues[key] = merged
	return nil
}

// Size reports the number of buffered messages for a conversation.
func (q *QueueStore) Size(ctx context.Context, key string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[key]), nil
}
