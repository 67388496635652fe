package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leadpulsehq/leadpulse/internal/bus"
	"github.com/leadpulsehq/leadpulse/internal/store"
)

func TestDedupStore_Seen(t *testing.T) {
	d := NewDedupStore(time.Minute, 100)
	ctx := context.Background()

	seen, err := d.Seen(ctx, "msg-1")
	if err != nil || seen {
		t.Fatalf("first Seen = (%v, %v), want (false, nil)", seen, err)
	}
	for i := 0; i < 3; i++ {
		seen, _ = d.Seen(ctx, "msg-1")
		if !seen {
			t.Fatal("re-delivery within TTL should report seen")
		}
	}
	seen, _ = d.Seen(ctx, "msg-2")
	if seen {
		t.Error("distinct id should not be seen")
	}
}

func TestDedupStore_TTLExpiry(t *testing.T) {
	d := NewDedupStore(time.Minute, 100)
	base := time.Now()
	d.now = func() time.Time { return base }
	ctx := context.Background()

	d.Seen(ctx, "msg-1")

	d.now = func() time.Time { return base.Add(2 * time.Minute) }
	seen, _ := d.Seen(ctx, "msg-1")
	if seen {
		t.Error("expired entry should be treated as unseen")
	}
}

func TestDedupStore_CapEviction(t *testing.T) {
	d := NewDedupStore(time.Hour, 3)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		d.Seen(ctx, id)
	}
	if len(d.entries) > 3 {
		t.Errorf("entry count %d exceeds cap", len(d.entries))
	}
}

func TestLockStore_Exclusive(t *testing.T) {
	l := NewLockStore()
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "c1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first Acquire = (%v, %v)", ok, err)
	}
	ok, _ = l.Acquire(ctx, "c1", time.Minute)
	if ok {
		t.Fatal("second Acquire should fail while held")
	}

	// Independent key is unaffected.
	ok, _ = l.Acquire(ctx, "c2", time.Minute)
	if !ok {
		t.Error("different key should acquire")
	}

	l.Release(ctx, "c1")
	ok, _ = l.Acquire(ctx, "c1", time.Minute)
	if !ok {
		t.Error("Acquire after Release should succeed")
	}
}

func TestLockStore_ConcurrentSingleWinner(t *testing.T) {
	l := NewLockStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Acquire(ctx, "c1", time.Minute); ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}
}

func TestLockStore_TTLBackstop(t *testing.T) {
	l := NewLockStore()
	base := time.Now()
	l.now = func() time.Time { return base }
	ctx := context.Background()

	l.Acquire(ctx, "c1", 30*time.Second)

	// Crashed holder: TTL expires, lock becomes acquirable.
	l.now = func() time.Time { return base.Add(time.Minute) }
	ok, _ := l.Acquire(ctx, "c1", 30*time.Second)
	if !ok {
		t.Error("expired lock should be acquirable")
	}
}

func TestWindowStore_Coalescing(t *testing.T) {
	w := NewWindowStore()
	base := time.Now()
	w.now = func() time.Time { return base }
	ctx := context.Background()
	delay := 5 * time.Second

	isNew, expiry, err := w.OpenOrExtend(ctx, "c1", delay)
	if err != nil || !isNew {
		t.Fatalf("first OpenOrExtend = (%v, _, %v), want new window", isNew, err)
	}
	if !expiry.Equal(base.Add(delay)) {
		t.Errorf("expiry = %v, want %v", expiry, base.Add(delay))
	}

	// t=2s and t=4s: same window, unchanged expiry.
	for _, offset := range []time.Duration{2 * time.Second, 4 * time.Second} {
		w.now = func() time.Time { return base.Add(offset) }
		isNew, got, _ := w.OpenOrExtend(ctx, "c1", delay)
		if isNew {
			t.Errorf("at +%v: window should coalesce", offset)
		}
		if !got.Equal(expiry) {
			t.Errorf("at +%v: expiry changed to %v", offset, got)
		}
	}

	// After expiry: a new window opens (no cross-window leakage).
	w.now = func() time.Time { return base.Add(6 * time.Second) }
	isNew, _, _ = w.OpenOrExtend(ctx, "c1", delay)
	if !isNew {
		t.Error("post-expiry OpenOrExtend should start a new window")
	}
}

func TestWindowStore_Clear(t *testing.T) {
	w := NewWindowStore()
	ctx := context.Background()

	w.OpenOrExtend(ctx, "c1", time.Minute)
	w.Clear(ctx, "c1")

	isNew, _, _ := w.OpenOrExtend(ctx, "c1", time.Minute)
	if !isNew {
		t.Error("cleared window should allow a fresh one")
	}
}

func TestQueueStore_DrainIdempotent(t *testing.T) {
	q := NewQueueStore()
	ctx := context.Background()

	for _, id := range []string{"m0", "m1", "m2"} {
		q.Append(ctx, "c1", bus.PendingMessage{ID: id})
	}

	msgs, err := q.DrainAll(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 || msgs[0].ID != "m0" || msgs[1].ID != "m1" || msgs[2].ID != "m2" {
		t.Errorf("drained = %v, want [m0 m1 m2]", msgs)
	}

	// Duplicate trigger: second drain is empty, not an error.
	msgs, err = q.DrainAll(ctx, "c1")
	if err != nil || len(msgs) != 0 {
		t.Errorf("second drain = (%v, %v), want empty", msgs, err)
	}
}

func TestQueueStore_RequeuePrepends(t *testing.T) {
	q := NewQueueStore()
	ctx := context.Background()

	q.Append(ctx, "c1", bus.PendingMessage{ID: "m0"})
	q.Append(ctx, "c1", bus.PendingMessage{ID: "m1"})
	batch, _ := q.DrainAll(ctx, "c1")

	// A newer message arrives while the failed batch is in flight.
	q.Append(ctx, "c1", bus.PendingMessage{ID: "m2"})
	if err := q.Requeue(ctx, "c1", batch); err != nil {
		t.Fatal(err)
	}

	msgs, _ := q.DrainAll(ctx, "c1")
	want := []string{"m0", "m1", "m2"}
	if len(msgs) != 3 {
		t.Fatalf("drained %d messages, want 3", len(msgs))
	}
	for i, id := range want {
		if msgs[i].ID != id {
			t.Errorf("msgs[%d] = %s, want %s", i, msgs[i].ID, id)
		}
	}

	if n, _ := q.Size(ctx, "c1"); n != 0 {
		t.Errorf("size after drain = %d", n)
	}
}

func TestConversationStore_Lifecycle(t *testing.T) {
	c := NewConversationStore()
	ctx := context.Background()
	key := store.ConversationKey("org1", "u1")

	conv, err := c.FindOrCreate(ctx, "org1", key, "contact-1")
	if err != nil {
		t.Fatal(err)
	}
	if conv.Status != store.StatusActive {
		t.Errorf("status = %s, want active", conv.Status)
	}

	again, _ := c.FindOrCreate(ctx, "org1", key, "contact-1")
	if again.ID != conv.ID {
		t.Error("FindOrCreate not idempotent")
	}

	if err := c.SetStatus(ctx, key, store.StatusClosed); err != nil {
		t.Fatal(err)
	}
	got, _ := c.Get(ctx, key)
	if got.Status != store.StatusClosed {
		t.Errorf("status = %s, want closed", got.Status)
	}

	if _, err := c.Get(ctx, "conv:org1:missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestConversationKey(t *testing.T) {
	key := store.ConversationKey("org1", "wa:12345")
	org, ext, ok := store.ParseConversationKey(key)
	if !ok || org != "org1" || ext != "wa:12345" {
		t.Errorf("round trip = (%q, %q, %v)", org, ext, ok)
	}
	if _, _, ok := store.ParseConversationKey("bogus"); ok {
		t.Error("malformed key should not parse")
	}
}
