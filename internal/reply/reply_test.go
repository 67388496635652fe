package reply

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leadpulsehq/leadpulse/internal/bus"
	"github.com/leadpulsehq/leadpulse/internal/qualify"
)

func TestParseResult(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		res, err := parseResult(`{"reply_text":"hi","answers":[{"stage":"situation","text":"clinic"}],"completed_stage":"situation","score":80}`)
		if err != nil {
			t.Fatal(err)
		}
		if res.ReplyText != "hi" || res.CompletedStage != qualify.StageSituation {
			t.Errorf("unexpected result: %+v", res)
		}
		if res.Score == nil || *res.Score != 80 {
			t.Errorf("score = %v, want 80", res.Score)
		}
	})

	t.Run("code fenced", func(t *testing.T) {
		res, err := parseResult("```json\n{\"reply_text\":\"ok\"}\n```")
		if err != nil {
			t.Fatal(err)
		}
		if res.ReplyText != "ok" {
			t.Errorf("reply = %q", res.ReplyText)
		}
	})

	t.Run("unknown completed stage dropped", func(t *testing.T) {
		res, err := parseResult(`{"reply_text":"ok","completed_stage":"nonsense"}`)
		if err != nil {
			t.Fatal(err)
		}
		if res.CompletedStage != "" {
			t.Errorf("completed stage = %q, want cleared", res.CompletedStage)
		}
	})

	t.Run("missing reply text", func(t *testing.T) {
		if _, err := parseResult(`{"answers":[]}`); err == nil {
			t.Error("expected error for missing reply_text")
		}
	})
}

func TestOpenAIGenerator_GenerateReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) < 3 {
			t.Errorf("expected system + state + user messages, got %d", len(req.Messages))
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"content": `{"reply_text":"And what challenges come with that?","answers":[{"stage":"situation","text":"runs a bakery"}],"completed_stage":"situation"}`,
				},
			}},
		})
	}))
	defer srv.Close()

	g := NewOpenAIGenerator("test-key", srv.URL, "gpt-4o-mini")
	res, err := g.GenerateReply(context.Background(), ConversationContext{
		ConversationKey: "conv:org1:u1",
		State:           qualify.NewMachine().Snapshot(),
		Batch:           []bus.PendingMessage{{Text: "I run a bakery"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.CompletedStage != qualify.StageSituation {
		t.Errorf("completed = %q", res.CompletedStage)
	}
	if len(res.Answers) != 1 || res.Answers[0].Text != "runs a bakery" {
		t.Errorf("answers = %+v", res.Answers)
	}
}

func TestOpenAIGenerator_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewOpenAIGenerator("k", srv.URL, "m")
	if _, err := g.GenerateReply(context.Background(), ConversationContext{}); err == nil {
		t.Error("expected error for 503")
	}
}

func TestRuleGenerator(t *testing.T) {
	g := &RuleGenerator{AnswersPerStage: 2}
	ctx := context.Background()

	t.Run("below threshold keeps stage", func(t *testing.T) {
		res, err := g.GenerateReply(ctx, ConversationContext{
			State: qualify.NewMachine().Snapshot(),
			Batch: []bus.PendingMessage{{Text: "hello"}},
		})
		if err != nil {
			t.Fatal(err)
		}
		if res.CompletedStage != "" {
			t.Errorf("stage completed too early: %q", res.CompletedStage)
		}
		if len(res.Answers) != 1 || res.Answers[0].Stage != qualify.StageSituation {
			t.Errorf("answers = %+v", res.Answers)
		}
	})

	t.Run("threshold completes stage", func(t *testing.T) {
		res, err := g.GenerateReply(ctx, ConversationContext{
			State: qualify.NewMachine().Snapshot(),
			Batch: []bus.PendingMessage{{Text: "a"}, {Text: "b"}},
		})
		if err != nil {
			t.Fatal(err)
		}
		if res.CompletedStage != qualify.StageSituation {
			t.Errorf("completed = %q, want situation", res.CompletedStage)
		}
		if res.Score != nil {
			t.Error("score should only be set on qualification")
		}
	})

	t.Run("needPayoff completion sets score", func(t *testing.T) {
		m := qualify.NewMachine()
		for _, st := range []qualify.Stage{qualify.StageSituation, qualify.StageProblem, qualify.StageImplication} {
			m.RecordAnswer(st, "x")
			m.MarkCompleted(st)
			m.Advance()
		}
		res, err := g.GenerateReply(ctx, ConversationContext{
			State: m.Snapshot(),
			Batch: []bus.PendingMessage{{Text: "a"}, {Text: "b"}},
		})
		if err != nil {
			t.Fatal(err)
		}
		if res.CompletedStage != qualify.StageNeedPayoff {
			t.Errorf("completed = %q", res.CompletedStage)
		}
		if res.Score == nil {
			t.Error("qualification should carry a score")
		}
	})
}
