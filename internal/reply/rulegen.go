package reply

import (
	"context"

	"github.com/leadpulsehq/leadpulse/internal/qualify"
)

// RuleGenerator is a deterministic generator used when no LLM provider is
// configured (standalone demos, tests). It records every batched message as
// an answer to the current stage, completes the stage once the answer
// threshold is met, and replies with a canned question for the next stage.
type RuleGenerator struct {
	// AnswersPerStage is the completion threshold. Zero means 3.
	AnswersPerStage int
}

var stageQuestions = map[qualify.Stage]string{
	qualify.StageSituation:   "Thanks for reaching out! To get started, could you tell me a bit about your business and how you handle this today?",
	qualify.StageProblem:     "Got it. What's the biggest difficulty you run into with your current setup?",
	qualify.StageImplication: "That sounds frustrating. How is that affecting your team or your revenue?",
	qualify.StageNeedPayoff:  "If you could fix that, what would it mean for your business?",
	qualify.StageQualified:   "Great news, you're a strong fit. I'll connect you with our team to take it from here!",
}

// GenerateReply implements Generator.
func (g *RuleGenerator) GenerateReply(ctx context.Context, conv ConversationContext) (*Result, error) {
	threshold := g.AnswersPerStage
	if threshold <= 0 {
		threshold = 3
	}

	stage := conv.State.Stage
	res := &Result{}

	if stage.Terminal() {
		res.ReplyText = stageQuestions[qualify.StageQualified]
		return res, nil
	}

	for _, m := range conv.Batch {
		res.Answers = append(res.Answers, StageAnswer{Stage: stage, Text: m.Text})
	}

	have := len(conv.State.StageStates[stage].Answers) + len(conv.Batch)
	if have >= threshold {
		res.CompletedStage = stage
		next := stage.Next()
		res.ReplyText = stageQuestions[next]
		if next.Terminal() {
			score := 85
			res.Score = &score
		}
	} else {
		res.ReplyText = stageQuestions[stage]
	}
	return res, nil
}
