package qualify

import (
	"sync"
	"time"
)

// Snapshot is a fully-applied view of one conversation's qualification
// state. It never exposes a half-written transition.
type Snapshot struct {
	Stage          Stage                `json:"stage"`
	Score          int                  `json:"score"` // 0..100, set on qualification
	StageStates    map[Stage]StageState `json:"stage_states"`
	LastActivityAt time.Time            `json:"last_activity_at,omitzero"`
}

// Machine advances a single conversation through the qualification stages.
// Transitions are monotonic: the stage only moves forward or stays, except
// for an explicit Reset. Safe for concurrent use.
type Machine struct {
	mu             sync.RWMutex
	stage          Stage
	score          int
	states         map[Stage]StageState
	lastActivityAt time.Time
	now            func() time.Time
}

// NewMachine returns a machine at the initial stage.
func NewMachine() *Machine {
	return &Machine{
		stage:  StageSituation,
		states: make(map[Stage]StageState),
		now:    time.Now,
	}
}

// Restore rebuilds a machine from a previously taken snapshot.
func Restore(snap Snapshot) *Machine {
	m := NewMachine()
	if snap.Stage.Valid() {
		m.stage = snap.Stage
	}
	m.score = clampScore(snap.Score)
	m.lastActivityAt = snap.LastActivityAt
	for st, ss := range snap.StageStates {
		cp := ss
		cp.Answers = append([]string(nil), ss.Answers...)
		m.states[st] = cp
	}
	return m
}

// RecordAnswer stores a free-text answer against a stage. Answers for stages
// behind the current one are kept for history but never regress the stage.
// Unknown or terminal stages are ignored.
func (m *Machine) RecordAnswer(stage Stage, text string) {
	if !stage.Valid() || stage.Terminal() || text == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ss := m.states[stage]
	ss.Answers = append(ss.Answers, text)
	ss.LastAnsweredAt = m.now()
	m.states[stage] = ss
	m.lastActivityAt = ss.LastAnsweredAt
}

// MarkCompleted flags a stage's collection criteria as satisfied. The
// judgment itself comes from the reply-generation analysis; the machine only
// records the outcome.
func (m *Machine) MarkCompleted(stage Stage) {
	if !stage.Valid() || stage.Terminal() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ss := m.states[stage]
	ss.Completed = true
	m.states[stage] = ss
}

// Advance moves to the next stage when the current one is completed.
// Advancing from qualified is a no-op. Returns the stage after the call.
func (m *Machine) Advance() Stage {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stage.Terminal() {
		return m.stage
	}
	if !m.states[m.stage].Completed {
		return m.stage
	}
	m.stage = m.stage.Next()
	m.lastActivityAt = m.now()
	return m.stage
}

// SetScore records the qualification score, clamped to [0,100]. Only
// meaningful once the machine reaches the terminal stage, but harmless
// earlier (the generator may emit interim scores).
func (m *Machine) SetScore(score int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.score = clampScore(score)
}

// Stage returns the current stage.
func (m *Machine) Stage() Stage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stage
}

// Qualified reports whether the machine reached the terminal stage.
func (m *Machine) Qualified() bool {
	return m.Stage().Terminal()
}

// Reset returns the machine to the initial stage, clearing collected
// answers and score. Used when a closed conversation is superseded.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stage = StageSituation
	m.score = 0
	m.states = make(map[Stage]StageState)
	m.lastActivityAt = m.now()
}

// Snapshot returns a deep copy of the fully-applied state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		Stage:          m.stage,
		Score:          m.score,
		StageStates:    make(map[Stage]StageState, len(m.states)),
		LastActivityAt: m.lastActivityAt,
	}
	for st, ss := range m.states {
		cp := ss
		cp.Answers = append([]string(nil), ss.Answers...)
		snap.StageStates[st] = cp
	}
	return snap
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
