package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the LeadPulse engine.
type Config struct {
	Gateway  GatewayConfig  `json:"gateway"`
	Engine   EngineConfig   `json:"engine"`
	Reply    ReplyConfig    `json:"reply"`
	Provider ProviderConfig `json:"provider"`
	Database DatabaseConfig `json:"database,omitempty"`
}

// GatewayConfig configures the HTTP surface.
type GatewayConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	Token        string `json:"token,omitempty"` // bearer token for API routes; empty = open
	RateLimitRPM int    `json:"rate_limit_rpm"`  // per-contact webhook rate limit
}

// EngineConfig tunes the batching coordinator.
type EngineConfig struct {
	OrgID           string `json:"org_id"`
	DebounceMs      int    `json:"debounce_ms"`       // batch window length
	LockTTLSeconds  int    `json:"lock_ttl_seconds"`  // drain lock backstop
	DedupTTLMinutes int    `json:"dedup_ttl_minutes"` // seen-message retention
	DedupMaxEntries int    `json:"dedup_max_entries"` // memory-mode cap
	HistoryLimit    int    `json:"history_limit"`     // transcript depth for reply generation
}

// ReplyConfig selects the reply generator.
type ReplyConfig struct {
	APIKey          string `json:"api_key,omitempty"` // empty = deterministic rule generator
	APIBase         string `json:"api_base,omitempty"`
	Model           string `json:"model,omitempty"`
	AnswersPerStage int    `json:"answers_per_stage"` // rule generator completion threshold
}

// ProviderConfig configures the outbound send API.
type ProviderConfig struct {
	SendAPIURL     string  `json:"send_api_url,omitempty"` // empty = log-only sender
	SendAPIToken   string  `json:"send_api_token,omitempty"`
	SendRatePerSec float64 `json:"send_rate_per_sec"`
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	PostgresDSN string `json:"-"` // env only (secret, never in config file)
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:         "0.0.0.0",
			Port:         18620,
			RateLimitRPM: 30,
		},
		Engine: EngineConfig{
			OrgID:           "default",
			DebounceMs:      5000,
			LockTTLSeconds:  30,
			DedupTTLMinutes: 20,
			DedupMaxEntries: 5000,
			HistoryLimit:    50,
		},
		Reply: ReplyConfig{
			APIBase:         "https://api.openai.com/v1",
			Model:           "gpt-4o-mini",
			AnswersPerStage: 3,
		},
		Provider: ProviderConfig{
			SendRatePerSec: 10,
		},
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Engine.OrgID == "" {
		return fmt.Errorf("engine.org_id is required")
	}
	if c.Engine.DebounceMs <= 0 {
		return fmt.Errorf("engine.debounce_ms must be positive")
	}
	if c.Engine.LockTTLSeconds <= 0 {
		return fmt.Errorf("engine.lock_ttl_seconds must be positive")
	}
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port %d out of range", c.Gateway.Port)
	}
	return nil
}

// DebounceDelay returns the batch window length.
func (c *Config) DebounceDelay() time.Duration {
	return time.Duration(c.Engine.DebounceMs) * time.Millisecond
}

// LockTTL returns the drain lock backstop duration.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Engine.LockTTLSeconds) * time.Second
}

// DedupTTL returns the seen-message retention period.
func (c *Config) DedupTTL() time.Duration {
	return time.Duration(c.Engine.DedupTTLMinutes) * time.Minute
}

// ListenAddr returns the gateway bind address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Gateway.Host, c.Gateway.Port)
}
