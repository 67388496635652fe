package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/leadpulsehq/leadpulse/internal/bus"
)

// HTTPSender delivers replies to the chat provider's send-message API.
// A token-bucket limiter smooths bursts so a many-conversation drain spike
// does not trip provider rate limits.
type HTTPSender struct {
	apiURL  string
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPSender creates a sender for the provider API. sendRatePerSec
// bounds outbound message rate; zero means 10/s.
func NewHTTPSender(apiURL, token string, sendRatePerSec float64) *HTTPSender {
	if sendRatePerSec <= 0 {
		sendRatePerSec = 10
	}
	return &HTTPSender{
		apiURL:  strings.TrimRight(apiURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(sendRatePerSec), int(sendRatePerSec)+1),
	}
}

// SendMessage posts one reply, waiting for rate-limiter headroom first.
func (s *HTTPSender) SendMessage(ctx context.Context, out bus.OutboundReply) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("send rate limit: %w", err)
	}

	body, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("send marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("send build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("send: provider status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}
	return nil
}

// LogSender logs replies instead of delivering them. Used in standalone
// mode when no provider send API is configured.
type LogSender struct{}

// SendMessage implements engine.Sender by logging the reply.
func (LogSender) SendMessage(ctx context.Context, out bus.OutboundReply) error {
	slog.Info("outbound reply (no provider configured)",
		"conversation", out.ConversationKey, "text", out.Text)
	return nil
}
