package reply

import (
	"context"

	"github.com/leadpulsehq/leadpulse/internal/bus"
	"github.com/leadpulsehq/leadpulse/internal/qualify"
	"github.com/leadpulsehq/leadpulse/internal/store"
)

// ConversationContext is everything the generator sees for one reply cycle:
// the drained batch in arrival order plus the conversation's current state
// and recent transcript.
type ConversationContext struct {
	ConversationKey string
	ContactName     string
	State           qualify.Snapshot
	History         []store.MessageRecord
	Batch           []bus.PendingMessage
}

// StageAnswer attributes one extracted answer to a qualification stage.
type StageAnswer struct {
	Stage qualify.Stage `json:"stage"`
	Text  string        `json:"text"`
}

// Result is the generator's structured output. The engine records it into
// the state machine; it never judges answer quality itself.
type Result struct {
	ReplyText      string        `json:"reply_text"`
	Answers        []StageAnswer `json:"answers,omitempty"`
	CompletedStage qualify.Stage `json:"completed_stage,omitempty"` // "" = nothing completed
	Score          *int          `json:"score,omitempty"`           // nil = unchanged
}

// Generator turns accumulated context into a reply plus stage analysis.
type Generator interface {
	GenerateReply(ctx context.Context, conv ConversationContext) (*Result, error)
}
