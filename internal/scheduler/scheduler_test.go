package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerScheduler_FiresOnce(t *testing.T) {
	s := NewTimerScheduler(SystemClock())
	defer s.Stop()

	var fired atomic.Int32
	done := make(chan struct{})
	err := s.ScheduleAt(context.Background(), time.Now().Add(10*time.Millisecond), "c1", func(ctx context.Context) {
		fired.Add(1)
		close(done)
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job never fired")
	}
	if n := fired.Load(); n != 1 {
		t.Errorf("fired %d times", n)
	}
}

func TestTimerScheduler_PastInstantFiresImmediately(t *testing.T) {
	s := NewTimerScheduler(SystemClock())
	defer s.Stop()

	done := make(chan struct{})
	s.ScheduleAt(context.Background(), time.Now().Add(-time.Minute), "c1", func(ctx context.Context) {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("past-instant job never fired")
	}
}

func TestTimerScheduler_JobSurvivesCallerCancel(t *testing.T) {
	s := NewTimerScheduler(SystemClock())
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	s.ScheduleAt(ctx, time.Now().Add(20*time.Millisecond), "c1", func(jobCtx context.Context) {
		done <- jobCtx.Err()
	})
	cancel() // webhook request finished before the drain fires

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("job context cancelled: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("job never fired after caller cancel")
	}
}

func TestTimerScheduler_StopCancelsPending(t *testing.T) {
	s := NewTimerScheduler(SystemClock())

	var fired atomic.Int32
	s.ScheduleAt(context.Background(), time.Now().Add(time.Hour), "c1", func(ctx context.Context) {
		fired.Add(1)
	})
	s.Stop()

	if fired.Load() != 0 {
		t.Error("pending job fired after Stop")
	}
	if err := s.ScheduleAt(context.Background(), time.Now(), "c1", func(ctx context.Context) {}); err == nil {
		t.Error("ScheduleAt after Stop should error")
	}
}
