// Package engine coordinates inbound webhook events: dedup, batching into
// debounce windows, per-conversation locking, and handing drained batches
// to reply generation with the qualification state machine advanced on the
// result.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/leadpulsehq/leadpulse/internal/bus"
	"github.com/leadpulsehq/leadpulse/internal/qualify"
	"github.com/leadpulsehq/leadpulse/internal/reply"
	"github.com/leadpulsehq/leadpulse/internal/scheduler"
	"github.com/leadpulsehq/leadpulse/internal/store"
)

// Sender delivers generated replies back to the chat provider.
type Sender interface {
	SendMessage(ctx context.Context, out bus.OutboundReply) error
}

// Options tunes the coordinator.
type Options struct {
	OrgID         string
	DebounceDelay time.Duration // batch window length
	LockTTL       time.Duration // backstop for crashed drain holders
	HistoryLimit  int           // transcript depth handed to the generator
}

func (o *Options) applyDefaults() {
	if o.DebounceDelay <= 0 {
		o.DebounceDelay = 5 * time.Second
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 30 * time.Second
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 50
	}
}

// Engine is the ingestion coordinator. Ingest may run concurrently for the
// same conversation; only the lock-serialized drain cycle mutates
// qualification state or sends replies.
type Engine struct {
	stores *store.Stores
	sched  scheduler.Scheduler
	gen    reply.Generator
	sender Sender
	opts   Options
}

// New wires the coordinator.
func New(stores *store.Stores, sched scheduler.Scheduler, gen reply.Generator, sender Sender, opts Options) *Engine {
	opts.applyDefaults()
	return &Engine{
		stores: stores,
		sched:  sched,
		gen:    gen,
		sender: sender,
		opts:   opts,
	}
}

// Ingest processes one canonical inbound event. Duplicates are dropped
// before any persistence or state mutation.
func (e *Engine) Ingest(ctx context.Context, ev bus.InboundEvent) (bus.IngestResult, error) {
	if ev.ProviderMessageID == "" || ev.ContactExternalID == "" {
		return bus.IngestResult{}, fmt.Errorf("ingest: event missing provider message id or contact id")
	}

	seen, err := e.stores.Dedup.Seen(ctx, ev.ProviderMessageID)
	if err != nil {
		return bus.IngestResult{}, fmt.Errorf("%w: dedup: %v", ErrStoreUnavailable, err)
	}
	if seen {
		slog.Debug("ingest: duplicate delivery dropped", "provider_message_id", ev.ProviderMessageID)
		return bus.IngestResult{Status: bus.StatusDuplicate}, nil
	}

	key := ev.ConversationKey
	if key == "" {
		key = store.ConversationKey(e.opts.OrgID, ev.ContactExternalID)
	}

	contact, err := e.stores.Contacts.FindOrCreate(ctx, e.opts.OrgID, ev.ContactExternalID, ev.SenderDisplayName)
	if err != nil {
		return bus.IngestResult{}, fmt.Errorf("%w: contact: %v", ErrStoreUnavailable, err)
	}
	if _, err := e.stores.Conversations.FindOrCreate(ctx, e.opts.OrgID, key, contact.ID); err != nil {
		return bus.IngestResult{}, fmt.Errorf("%w: conversation: %v", ErrStoreUnavailable, err)
	}

	msg := bus.PendingMessage{
		ID:                uuid.Must(uuid.NewV7()).String(),
		ProviderMessageID: ev.ProviderMessageID,
		Text:              ev.Text,
		SenderDisplayName: ev.SenderDisplayName,
		ArrivedAt:         ev.Timestamp(),
	}
	if err := e.stores.Messages.AppendInbound(ctx, key, msg); err != nil {
		return bus.IngestResult{}, fmt.Errorf("%w: persist message: %v", ErrStoreUnavailable, err)
	}
	if err := e.stores.Queue.Append(ctx, key, msg); err != nil {
		return bus.IngestResult{}, fmt.Errorf("%w: queue: %v", ErrStoreUnavailable, err)
	}

	isNew, expiresAt, err := e.stores.Windows.OpenOrExtend(ctx, key, e.opts.DebounceDelay)
	if err != nil {
		return bus.IngestResult{}, fmt.Errorf("%w: window: %v", ErrStoreUnavailable, err)
	}

	if !isNew {
		slog.Debug("ingest: coalesced into open window",
			"conversation", key, "expires_at", expiresAt)
		return bus.IngestResult{Status: bus.StatusCoalesced, ExpiresAt: expiresAt}, nil
	}

	if err := e.scheduleDrain(ctx, key, expiresAt); err != nil {
		return bus.IngestResult{}, err
	}
	slog.Info("ingest: batch window opened",
		"conversation", key, "expires_at", expiresAt)
	return bus.IngestResult{Status: bus.StatusScheduled, ExpiresAt: expiresAt}, nil
}

// scheduleDrain registers the deferred drain, retrying with exponential
// backoff. A batch that is never scheduled would never fire.
func (e *Engine) scheduleDrain(ctx context.Context, key string, at time.Time) error {
	op := func() (struct{}, error) {
		return struct{}{}, e.sched.ScheduleAt(ctx, at, key, func(jobCtx context.Context) {
			if err := e.ProcessDue(jobCtx, key); err != nil {
				slog.Error("drain cycle failed", "conversation", key, "error", err)
			}
		})
	}
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(5),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchedulerUnavailable, err)
	}
	return nil
}

// ProcessDue runs one drain-and-reply cycle for a conversation. Safe to
// trigger more than once: lock contention and an already-drained queue both
// end the cycle silently.
func (e *Engine) ProcessDue(ctx context.Context, key string) error {
	acquired, err := e.stores.Locks.Acquire(ctx, key, e.opts.LockTTL)
	if err != nil {
		return fmt.Errorf("%w: lock: %v", ErrStoreUnavailable, err)
	}
	if !acquired {
		// Another in-flight cycle owns this conversation; it re-checks for
		// late arrivals before releasing.
		slog.Debug("drain: lock contended, skipping", "conversation", key)
		return nil
	}
	defer func() {
		// Release must survive a cancelled job context.
		if err := e.stores.Locks.Release(context.WithoutCancel(ctx), key); err != nil {
			slog.Warn("drain: lock release failed, TTL will expire it",
				"conversation", key, "error", err)
		}
	}()

	msgs, err := e.stores.Queue.DrainAll(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: drain: %v", ErrStoreUnavailable, err)
	}
	if len(msgs) == 0 {
		// A concurrent duplicate trigger already handled the batch.
		e.clearWindow(ctx, key)
		return nil
	}

	conv, err := e.stores.Conversations.Get(ctx, key)
	if err != nil {
		e.recoverBatch(ctx, key, msgs)
		return fmt.Errorf("%w: conversation: %v", ErrStoreUnavailable, err)
	}
	if conv.Status != store.StatusActive {
		// Closed or paused externally: the messages stay persisted, but no
		// reply is generated.
		slog.Info("drain: conversation not active, discarding cycle",
			"conversation", key, "status", conv.Status)
		e.clearWindow(ctx, key)
		return nil
	}

	history, err := e.stores.Messages.History(ctx, key, e.opts.HistoryLimit)
	if err != nil {
		e.recoverBatch(ctx, key, msgs)
		return fmt.Errorf("%w: history: %v", ErrStoreUnavailable, err)
	}

	res, err := e.gen.GenerateReply(ctx, reply.ConversationContext{
		ConversationKey: key,
		State:           conv.State,
		History:         history,
		Batch:           msgs,
	})
	if err != nil {
		e.recoverBatch(ctx, key, msgs)
		return fmt.Errorf("%w: %v", ErrReplyGeneration, err)
	}

	e.applyResult(ctx, key, conv.State, res)

	if err := e.sender.SendMessage(ctx, bus.OutboundReply{ConversationKey: key, Text: res.ReplyText}); err != nil {
		e.recoverBatch(ctx, key, msgs)
		return fmt.Errorf("%w: send: %v", ErrReplyGeneration, err)
	}
	if _, err := e.stores.Messages.AppendOutbound(ctx, key, res.ReplyText); err != nil {
		slog.Warn("drain: outbound record not persisted", "conversation", key, "error", err)
	}

	slog.Info("drain: reply cycle complete",
		"conversation", key, "batch_size", len(msgs))

	e.clearWindow(ctx, key)

	// Late arrivals during this cycle get a fresh window instead of
	// stranding until the next inbound message.
	if n, err := e.stores.Queue.Size(ctx, key); err == nil && n > 0 {
		if _, expiresAt, werr := e.stores.Windows.OpenOrExtend(ctx, key, e.opts.DebounceDelay); werr == nil {
			if serr := e.scheduleDrain(ctx, key, expiresAt); serr != nil {
				slog.Error("drain: late-arrival reschedule failed",
					"conversation", key, "error", serr)
			}
		}
	}
	return nil
}

// applyResult feeds the generator's structured verdict into the state
// machine and persists the new snapshot.
func (e *Engine) applyResult(ctx context.Context, key string, state qualify.Snapshot, res *reply.Result) {
	m := qualify.Restore(state)
	for _, ans := range res.Answers {
		m.RecordAnswer(ans.Stage, ans.Text)
	}
	if res.CompletedStage != "" {
		m.MarkCompleted(res.CompletedStage)
		if res.CompletedStage == m.Stage() {
			m.Advance()
		}
	}
	if res.Score != nil {
		m.SetScore(*res.Score)
	}
	if err := e.stores.Conversations.UpdateState(ctx, key, m.Snapshot()); err != nil {
		slog.Warn("drain: state update failed", "conversation", key, "error", err)
	}
}

// recoverBatch puts a failed batch back at the head of the queue and reopens a
// window so a retry fires; drained messages are never dropped without a
// delivered reply.
func (e *Engine) recoverBatch(ctx context.Context, key string, msgs []bus.PendingMessage) {
	ctx = context.WithoutCancel(ctx)
	if err := e.stores.Queue.Requeue(ctx, key, msgs); err != nil {
		slog.Error("drain: requeue failed, batch may be delayed until next inbound",
			"conversation", key, "count", len(msgs), "error", err)
	}
	e.clearWindow(ctx, key)
	if _, expiresAt, err := e.stores.Windows.OpenOrExtend(ctx, key, e.opts.DebounceDelay); err == nil {
		if serr := e.scheduleDrain(ctx, key, expiresAt); serr != nil {
			slog.Error("drain: retry reschedule failed", "conversation", key, "error", serr)
		}
	}
}

func (e *Engine) clearWindow(ctx context.Context, key string) {
	if err := e.stores.Windows.Clear(context.WithoutCancel(ctx), key); err != nil {
		slog.Warn("drain: window clear failed", "conversation", key, "error", err)
	}
}

// GetConversationSnapshot returns the conversation aggregate for
// observability.
func (e *Engine) GetConversationSnapshot(ctx context.Context, key string) (*store.Conversation, error) {
	return e.stores.Conversations.Get(ctx, key)
}

// CloseConversation marks a conversation closed; subsequent drains discard
// their cycles without replying.
func (e *Engine) CloseConversation(ctx context.Context, key string) error {
	return e.stores.Conversations.SetStatus(ctx, key, store.StatusClosed)
}
