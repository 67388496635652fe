package reply

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/leadpulsehq/leadpulse/internal/qualify"
)

// OpenAIGenerator implements Generator against any OpenAI-compatible chat
// completions API (OpenAI, Groq, OpenRouter, DeepSeek, VLLM, etc.).
type OpenAIGenerator struct {
	apiKey  string
	apiBase string
	model   string
	client  *http.Client
}

// NewOpenAIGenerator creates a generator for the given API.
func NewOpenAIGenerator(apiKey, apiBase, model string) *OpenAIGenerator {
	if apiBase == "" {
		apiBase = "https://api.openai.com/v1"
	}
	apiBase = strings.TrimRight(apiBase, "/")

	return &OpenAIGenerator{
		apiKey:  apiKey,
		apiBase: apiBase,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

const systemPrompt = `You are a sales assistant qualifying a lead over chat using SPIN questioning.
The conversation moves through stages: situation, problem, implication, needPayoff, qualified.
Given the current stage, collected answers, and the customer's new messages, respond with JSON only:
{"reply_text": "...", "answers": [{"stage": "...", "text": "..."}], "completed_stage": "", "score": null}
- reply_text: your next message to the customer (warm, concise, one question at a time).
- answers: facts the new messages contribute, attributed to their stage.
- completed_stage: set to a stage name only when its collection criteria are now satisfied.
- score: 0-100 qualification score, only when the lead reaches qualified.`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GenerateReply sends the batch and state to the model and parses its
// structured verdict.
func (g *OpenAIGenerator) GenerateReply(ctx context.Context, conv ConversationContext) (*Result, error) {
	msgs := []chatMessage{{Role: "system", Content: systemPrompt}}
	msgs = append(msgs, chatMessage{Role: "system", Content: g.buildStateNote(conv)})

	for _, rec := range conv.History {
		role := "user"
		if rec.Direction == "out" {
			role = "assistant"
		}
		msgs = append(msgs, chatMessage{Role: role, Content: rec.Text})
	}
	// The drained batch, in arrival order, as the latest user turn.
	var batch strings.Builder
	for i, m := range conv.Batch {
		if i > 0 {
			batch.WriteString("\n")
		}
		batch.WriteString(m.Text)
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: batch.String()})

	body, err := json.Marshal(chatRequest{
		Model:       g.model,
		Messages:    msgs,
		Temperature: 0.7,
		ResponseFormat: &struct {
			Type string `json:"type"`
		}{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiBase+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("openai: status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}
	if cr.Error != nil {
		return nil, fmt.Errorf("openai: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices")
	}

	return parseResult(cr.Choices[0].Message.Content)
}

func (g *OpenAIGenerator) buildStateNote(conv ConversationContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current stage: %s.", conv.State.Stage)
	if conv.ContactName != "" {
		fmt.Fprintf(&b, " Customer name: %s.", conv.ContactName)
	}
	for _, st := range qualify.Stages() {
		ss, ok := conv.State.StageStates[st]
		if !ok || len(ss.Answers) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s answers so far: %s", st, strings.Join(ss.Answers, "; "))
	}
	return b.String()
}

// parseResult decodes the model's JSON verdict, tolerating code fences.
func parseResult(content string) (*Result, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var res Result
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &res); err != nil {
		return nil, fmt.Errorf("openai: parse result: %w", err)
	}
	if res.ReplyText == "" {
		return nil, fmt.Errorf("openai: result missing reply_text")
	}
	if res.CompletedStage != "" && !res.CompletedStage.Valid() {
		res.CompletedStage = ""
	}
	return &res, nil
}
