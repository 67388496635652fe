// Package scheduler provides the deferred-execution capability the
// coordinator uses to fire batch drains. The coordinator only decides when
// to schedule; executing at the right moment lives here so tests can inject
// an inline executor instead of real timers.
package scheduler

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// Job is a deferred unit of work. The context is detached from the
// scheduling request's cancellation: a drain must run even after the
// webhook request that scheduled it has completed.
type Job func(ctx context.Context)

// Scheduler runs a job at (or after) a given instant.
type Scheduler interface {
	ScheduleAt(ctx context.Context, at time.Time, key string, job Job) error
}

// TimerScheduler runs jobs on in-process timers. One timer per schedule
// call; the coordinator's window coalescing guarantees at most one live
// timer per conversation.
type TimerScheduler struct {
	clock Clock

	mu      sync.Mutex
	timers  map[int64]*time.Timer
	nextID  int64
	stopped bool
	wg      sync.WaitGroup
}

// NewTimerScheduler creates a scheduler on the given clock.
func NewTimerScheduler(clock Clock) *TimerScheduler {
	if clock == nil {
		clock = SystemClock()
	}
	return &TimerScheduler{
		clock:  clock,
		timers: make(map[int64]*time.Timer),
	}
}

// ScheduleAt fires the job once at the given instant. Instants in the past
// fire immediately.
func (s *TimerScheduler) ScheduleAt(ctx context.Context, at time.Time, key string, job Job) error {
	delay := at.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return context.Canceled
	}
	id := s.nextID
	s.nextID++
	s.wg.Add(1)

	// Detach from the caller's context so the drain outlives the webhook
	// request that scheduled it.
	jobCtx := context.WithoutCancel(ctx)

	timer := time.AfterFunc(delay, func() {
		defer s.wg.Done()
		s.mu.Lock()
		delete(s.timers, id)
		stopped := s.stopped
		s.mu.Unlock()
		if stopped {
			return
		}
		job(jobCtx)
	})
	s.timers[id] = timer
	s.mu.Unlock()
	return nil
}

// Stop cancels pending timers and waits for in-flight jobs to finish.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, timer := range s.timers {
		if timer.Stop() {
			s.wg.Done()
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
