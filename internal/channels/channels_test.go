package channels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leadpulsehq/leadpulse/internal/bus"
)

func TestWebhookRateLimiter(t *testing.T) {
	r := NewWebhookRateLimiter(3)

	for i := 0; i < 3; i++ {
		if !r.Allow("k1") {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if r.Allow("k1") {
		t.Error("request over limit should be rejected")
	}
	if !r.Allow("k2") {
		t.Error("independent key should be allowed")
	}
}

func TestHTTPSender_SendMessage(t *testing.T) {
	var got bus.OutboundReply
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("auth = %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL, "tok", 100)
	err := s.SendMessage(context.Background(), bus.OutboundReply{
		ConversationKey: "conv:org1:u1",
		Text:            "hello there",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "hello there" {
		t.Errorf("provider received %+v", got)
	}
}

func TestHTTPSender_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL, "", 100)
	if err := s.SendMessage(context.Background(), bus.OutboundReply{Text: "x"}); err == nil {
		t.Error("expected error for provider 429")
	}
}
