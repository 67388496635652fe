// Package httpapi exposes the webhook and conversation endpoints.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/leadpulsehq/leadpulse/internal/bus"
	"github.com/leadpulsehq/leadpulse/internal/channels"
	"github.com/leadpulsehq/leadpulse/internal/engine"
	"github.com/leadpulsehq/leadpulse/internal/store"
)

// Handler serves the ingestion webhook and conversation read endpoints.
type Handler struct {
	engine  *engine.Engine
	token   string
	limiter *channels.WebhookRateLimiter
}

// NewHandler creates the HTTP surface for the engine. rateLimitRPM bounds
// webhook requests per contact per minute.
func NewHandler(eng *engine.Engine, token string, rateLimitRPM int) *Handler {
	return &Handler{
		engine:  eng,
		token:   token,
		limiter: channels.NewWebhookRateLimiter(rateLimitRPM),
	}
}

// RegisterRoutes registers all routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/webhook", h.authMiddleware(h.handleWebhook))
	mux.HandleFunc("GET /v1/conversations/{key}", h.authMiddleware(h.handleGetConversation))
	mux.HandleFunc("POST /v1/conversations/{key}/close", h.authMiddleware(h.handleCloseConversation))
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

func (h *Handler) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.token != "" {
			if extractBearerToken(r) != h.token {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
		}
		next(w, r)
	}
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var ev bus.InboundEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if ev.ProviderMessageID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "provider_message_id is required"})
		return
	}
	if ev.ContactExternalID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "contact_external_id is required"})
		return
	}

	if !h.limiter.Allow(ev.ContactExternalID) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
		return
	}

	res, err := h.engine.Ingest(r.Context(), ev)
	if err != nil {
		// Fail closed so the provider retries the delivery later.
		slog.Error("webhook: ingest failed", "provider_message_id", ev.ProviderMessageID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "ingestion unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	conv, err := h.engine.GetConversationSnapshot(r.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "conversation not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *Handler) handleCloseConversation(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if err := h.engine.CloseConversation(r.Context(), key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "conversation not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "true"})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
