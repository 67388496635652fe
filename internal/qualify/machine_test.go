package qualify

import (
	"testing"
	"time"
)

func TestStage_Ordering(t *testing.T) {
	if StageSituation.Next() != StageProblem {
		t.Errorf("situation.Next() = %s, want problem", StageSituation.Next())
	}
	if StageNeedPayoff.Next() != StageQualified {
		t.Errorf("needPayoff.Next() = %s, want qualified", StageNeedPayoff.Next())
	}
	if StageQualified.Next() != StageQualified {
		t.Error("qualified.Next() should stay terminal")
	}
	if Stage("bogus").Valid() {
		t.Error("unknown stage should not be valid")
	}
}

func TestMachine_RecordAndAdvance(t *testing.T) {
	m := NewMachine()

	for _, ans := range []string{"we run a small clinic", "20 staff", "two locations"} {
		m.RecordAnswer(StageSituation, ans)
	}

	// Not completed yet: advance is a no-op.
	if got := m.Advance(); got != StageSituation {
		t.Errorf("Advance before completion = %s, want situation", got)
	}

	m.MarkCompleted(StageSituation)
	if got := m.Advance(); got != StageProblem {
		t.Errorf("Advance = %s, want problem", got)
	}

	// Previous answers remain readable after advancing.
	snap := m.Snapshot()
	if snap.Stage != StageProblem {
		t.Errorf("snapshot stage = %s, want problem", snap.Stage)
	}
	got := snap.StageStates[StageSituation].Answers
	if len(got) != 3 || got[0] != "we run a small clinic" {
		t.Errorf("situation answers = %v, want 3 preserved in order", got)
	}
	if !snap.StageStates[StageSituation].Completed {
		t.Error("situation should be marked completed")
	}
}

func TestMachine_Monotonic(t *testing.T) {
	m := NewMachine()
	for _, st := range []Stage{StageSituation, StageProblem, StageImplication, StageNeedPayoff} {
		m.RecordAnswer(st, "answer")
		m.MarkCompleted(st)
		m.Advance()
	}

	if !m.Qualified() {
		t.Fatalf("stage = %s, want qualified", m.Stage())
	}

	// Advancing past the terminal stage is a no-op.
	if got := m.Advance(); got != StageQualified {
		t.Errorf("Advance past qualified = %s", got)
	}

	// Recording against an earlier stage must not regress.
	m.RecordAnswer(StageSituation, "late answer")
	if m.Stage() != StageQualified {
		t.Errorf("stage regressed to %s", m.Stage())
	}
	snap := m.Snapshot()
	if n := len(snap.StageStates[StageSituation].Answers); n != 2 {
		t.Errorf("late answer not kept in history, got %d answers", n)
	}
}

func TestMachine_ScoreClamped(t *testing.T) {
	m := NewMachine()
	m.SetScore(150)
	if s := m.Snapshot().Score; s != 100 {
		t.Errorf("score = %d, want clamped to 100", s)
	}
	m.SetScore(-5)
	if s := m.Snapshot().Score; s != 0 {
		t.Errorf("score = %d, want clamped to 0", s)
	}
}

func TestMachine_Reset(t *testing.T) {
	m := NewMachine()
	m.RecordAnswer(StageSituation, "a")
	m.MarkCompleted(StageSituation)
	m.Advance()
	m.SetScore(40)

	m.Reset()

	snap := m.Snapshot()
	if snap.Stage != StageSituation || snap.Score != 0 || len(snap.StageStates) != 0 {
		t.Errorf("reset snapshot = %+v, want initial state", snap)
	}
}

func TestMachine_SnapshotIsolated(t *testing.T) {
	m := NewMachine()
	m.RecordAnswer(StageSituation, "a")

	snap := m.Snapshot()
	snap.StageStates[StageSituation] = StageState{Answers: []string{"mutated"}}

	if got := m.Snapshot().StageStates[StageSituation].Answers[0]; got != "a" {
		t.Errorf("snapshot mutation leaked into machine: %q", got)
	}
}

func TestRestore(t *testing.T) {
	m := NewMachine()
	m.RecordAnswer(StageSituation, "a")
	m.MarkCompleted(StageSituation)
	m.Advance()

	snap := m.Snapshot()
	restored := Restore(snap)

	got := restored.Snapshot()
	if got.Stage != StageProblem {
		t.Errorf("restored stage = %s, want problem", got.Stage)
	}
	if len(got.StageStates[StageSituation].Answers) != 1 {
		t.Error("restored answers missing")
	}
	if got.LastActivityAt.After(time.Now()) {
		t.Error("restored lastActivityAt in the future")
	}
}
