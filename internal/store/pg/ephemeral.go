package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/leadpulsehq/leadpulse/internal/bus"
)

// PGDedupStore implements store.DedupStore on an inbound_dedup table.
type PGDedupStore struct {
	db  *sql.DB
	ttl time.Duration
}

func NewPGDedupStore(db *sql.DB, ttl time.Duration) *PGDedupStore {
	return &PGDedupStore{db: db, ttl: ttl}
}

// Seen marks the id and reports whether it was already marked within the
// TTL. One statement: an insert wins, a conflict on a stale row refreshes
// it, a conflict on a fresh row affects nothing and means duplicate.
func (d *PGDedupStore) Seen(ctx context.Context, providerMessageID string) (bool, error) {
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO inbound_dedup (message_id, seen_at) VALUES ($1, now())
		 ON CONFLICT (message_id) DO UPDATE SET seen_at = now()
		 WHERE inbound_dedup.seen_at < now() - make_interval(secs => $2)`,
		providerMessageID, d.ttl.Seconds(),
	)
	if err != nil {
		return false, fmt.Errorf("dedup seen: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("dedup seen: %w", err)
	}
	return n == 0, nil
}

// Sweep removes expired dedup records. Called periodically; correctness
// does not depend on it, only table size.
func (d *PGDedupStore) Sweep(ctx context.Context) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM inbound_dedup WHERE seen_at < now() - make_interval(secs => $1)`,
		d.ttl.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("dedup sweep: %w", err)
	}
	return res.RowsAffected()
}

// PGLockStore implements store.LockStore on a conversation_locks table.
type PGLockStore struct {
	db *sql.DB
}

func NewPGLockStore(db *sql.DB) *PGLockStore {
	return &PGLockStore{db: db}
}

// Acquire is set-if-absent with expiry; an expired holder's row is taken
// over in the same statement.
func (l *PGLockStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO conversation_locks (conversation_key, expires_at)
		 VALUES ($1, now() + make_interval(secs => $2))
		 ON CONFLICT (conversation_key) DO UPDATE SET expires_at = excluded.expires_at
		 WHERE conversation_locks.expires_at <= now()`,
		key, ttl.Seconds(),
	)
	if err != nil {
		return false, fmt.Errorf("lock acquire: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("lock acquire: %w", err)
	}
	return n == 1, nil
}

func (l *PGLockStore) Release(ctx context.Context, key string) error {
	if _, err := l.db.ExecContext(ctx,
		`DELETE FROM conversation_locks WHERE conversation_key = $1`, key); err != nil {
		return fmt.Errorf("lock release: %w", err)
	}
	return nil
}

// PGWindowStore implements store.WindowStore on a batch_windows table.
type PGWindowStore struct {
	db *sql.DB
}

func NewPGWindowStore(db *sql.DB) *PGWindowStore {
	return &PGWindowStore{db: db}
}

// OpenOrExtend inserts or takes over an expired window; a still-open window
// is returned unchanged. The CTE reports which case happened.
func (w *PGWindowStore) OpenOrExtend(ctx context.Context, key string, delay time.Duration) (bool, time.Time, error) {
	var expiresAt time.Time
	var isNew bool
	err := w.db.QueryRowContext(ctx,
		`WITH opened AS (
		   INSERT INTO batch_windows (conversation_key, expires_at)
		   VALUES ($1, now() + make_interval(secs => $2))
		   ON CONFLICT (conversation_key) DO UPDATE SET expires_at = excluded.expires_at
		   WHERE batch_windows.expires_at <= now()
		   RETURNING expires_at
		 )
		 SELECT expires_at, true FROM opened
		 UNION ALL
		 SELECT expires_at, false FROM batch_windows
		 WHERE conversation_key = $1 AND NOT EXISTS (SELECT 1 FROM opened)`,
		key, delay.Seconds(),
	).Scan(&expiresAt, &isNew)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("window open: %w", err)
	}
	return isNew, expiresAt, nil
}

func (w *PGWindowStore) Clear(ctx context.Context, key string) error {
	if _, err := w.db.ExecContext(ctx,
		`DELETE FROM batch_windows WHERE conversation_key = $1`, key); err != nil {
		return fmt.Errorf("window clear: %w", err)
	}
	return nil
}

// PGQueueStore implements store.QueueStore on a pending_messages table
// ordered by a sequence column.
type PGQueueStore struct {
	db *sql.DB
}

func NewPGQueueStore(db *sql.DB) *PGQueueStore {
	return &PGQueueStore{db: db}
}

func (q *PGQueueStore) Append(ctx context.Context, key string, msg bus.PendingMessage) error {
	if _, err := q.db.ExecContext(ctx,
		`INSERT INTO pending_messages
		   (id, conversation_key, provider_message_id, text, sender_display_name, arrived_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, key, msg.ProviderMessageID, msg.Text, msg.SenderDisplayName, msg.ArrivedAt,
	); err != nil {
		return fmt.Errorf("queue append: %w", err)
	}
	return nil
}

// DrainAll deletes and returns the whole queue in one statement so a
// concurrent duplicate trigger gets nothing.
func (q *PGQueueStore) DrainAll(ctx context.Context, key string) ([]bus.PendingMessage, error) {
	rows, err := q.db.QueryContext(ctx,
		`WITH drained AS (
		   DELETE FROM pending_messages WHERE conversation_key = $1
		   RETURNING id, provider_message_id, text, sender_display_name, arrived_at, seq
		 )
		 SELECT id, provider_message_id, text, sender_display_name, arrived_at
		 FROM drained ORDER BY seq`,
		key,
	)
	if err != nil {
		return nil, fmt.Errorf("queue drain: %w", err)
	}
	defer rows.Close()

	var msgs []bus.PendingMessage
	for rows.Next() {
		var m bus.PendingMessage
		if err := rows.Scan(&m.ID, &m.ProviderMessageID, &m.Text, &m.SenderDisplayName, &m.ArrivedAt); err != nil {
			return nil, fmt.Errorf("queue drain scan: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("queue drain: %w", err)
	}
	return msgs, nil
}

// Requeue re-inserts a failed batch with sequence numbers below the current
// minimum so it drains ahead of anything that arrived since.
func (q *PGQueueStore) Requeue(ctx context.Context, key string, msgs []bus.PendingMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("queue requeue: %w", err)
	}
	defer tx.Rollback()

	var minSeq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MIN(seq), 0) FROM pending_messages WHERE conversation_key = $1`,
		key,
	).Scan(&minSeq); err != nil {
		return fmt.Errorf("queue requeue: %w", err)
	}

	base := minSeq - int64(len(msgs))
	for i, m := range msgs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pending_messages
			   (id, conversation_key, provider_message_id, text, sender_display_name, arrived_at, seq)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			m.ID, key, m.ProviderMessageID, m.Text, m.SenderDisplayName, m.ArrivedAt, base+int64(i),
		); err != nil {
			return fmt.Errorf("queue requeue: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("queue requeue: %w", err)
	}
	return nil
}

func (q *PGQueueStore) Size(ctx context.Context, key string) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_messages WHERE conversation_key = $1`, key,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("queue size: %w", err)
	}
	return n, nil
}
