package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/titanous/json5"
)

// Load reads a JSON5 config file and applies LEADPULSE_* environment
// overrides on top. A missing file is not an error; defaults plus env
// are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployment environments override file values.
// Secrets (tokens, DSN, API keys) are expected to arrive this way.
func applyEnvOverrides(cfg *Config) {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	envStr("LEADPULSE_HOST", &cfg.Gateway.Host)
	envInt("LEADPULSE_PORT", &cfg.Gateway.Port)
	envStr("LEADPULSE_GATEWAY_TOKEN", &cfg.Gateway.Token)
	envInt("LEADPULSE_RATE_LIMIT_RPM", &cfg.Gateway.RateLimitRPM)

	envStr("LEADPULSE_ORG_ID", &cfg.Engine.OrgID)
	envInt("LEADPULSE_DEBOUNCE_MS", &cfg.Engine.DebounceMs)
	envInt("LEADPULSE_LOCK_TTL_SECONDS", &cfg.Engine.LockTTLSeconds)
	envInt("LEADPULSE_HISTORY_LIMIT", &cfg.Engine.HistoryLimit)

	envStr("LEADPULSE_REPLY_API_KEY", &cfg.Reply.APIKey)
	envStr("LEADPULSE_REPLY_API_BASE", &cfg.Reply.APIBase)
	envStr("LEADPULSE_REPLY_MODEL", &cfg.Reply.Model)

	envStr("LEADPULSE_SEND_API_URL", &cfg.Provider.SendAPIURL)
	envStr("LEADPULSE_SEND_API_TOKEN", &cfg.Provider.SendAPIToken)

	envStr("LEADPULSE_POSTGRES_DSN", &cfg.Database.PostgresDSN)
}
