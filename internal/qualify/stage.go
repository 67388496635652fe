package qualify

import "time"

// Stage is one step of the SPIN qualification sequence.
type Stage string

const (
	StageSituation   Stage = "situation"
	StageProblem     Stage = "problem"
	StageImplication Stage = "implication"
	StageNeedPayoff  Stage = "needPayoff"
	StageQualified   Stage = "qualified" // terminal
)

// stageOrder defines the forward-only progression.
var stageOrder = []Stage{
	StageSituation,
	StageProblem,
	StageImplication,
	StageNeedPayoff,
	StageQualified,
}

// Index returns the position of s in the qualification sequence, or -1 for
// an unknown stage.
func (s Stage) Index() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool { return s.Index() >= 0 }

// Terminal reports whether s is the final stage.
func (s Stage) Terminal() bool { return s == StageQualified }

// Next returns the stage after s. Terminal and unknown stages return s
// unchanged.
func (s Stage) Next() Stage {
	i := s.Index()
	if i < 0 || i >= len(stageOrder)-1 {
		return s
	}
	return stageOrder[i+1]
}

// Stages returns the full progression in order.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// StageState holds what has been collected for one non-terminal stage.
type StageState struct {
	Answers        []string  `json:"answers,omitempty"`
	Completed      bool      `json:"completed"`
	LastAnsweredAt time.Time `json:"last_answered_at,omitzero"`
}
