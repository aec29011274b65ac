package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration populated from environment variables.
type Config struct {
	// Core
	ServerPort int
	ServerEnv  string // "development" or "production"

	// Shared secrets. RobloxServerKey authenticates game-server calls; when empty
	// every such call fails unauthorized. WebTokenSecret signs capability tokens;
	// when empty token verification is disabled and token-gated routes run open
	// (test/dev mode).
	RobloxServerKey string
	WebTokenSecret  string

	// CORS allowlist, comma-separated. Empty allows any origin.
	AllowedOrigins string

	// Push subscriber caps
	MaxSSEPerUser int
	MaxSSEPerIP   int

	// TTLs and windows, all in milliseconds
	SessionTTLMs      int64
	RadioTTLMs        int64
	StateTTLMs        int64
	StateMinGapMs     int64
	WebTokenTTLMs     int64
	JoinDedupWindowMs int64
	MuteDedupWindowMs int64
	PushHeartbeatMs   int64
}

// Load reads configuration from environment variables, falling back to defaults. It
// returns an error if any variable is set but cannot be parsed, or a limit is out of
// range.
func Load() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		ServerPort: p.int("PORT", 3000),
		ServerEnv:  envStr("SERVER_ENV", "production"),

		RobloxServerKey: envStr("ROBLOX_SERVER_KEY", ""),
		WebTokenSecret:  envStr("WEB_TOKEN_SECRET", ""),

		AllowedOrigins: envStr("ALLOWED_ORIGINS", ""),

		MaxSSEPerUser: p.int("MAX_SSE_PER_USER", 3),
		MaxSSEPerIP:   p.int("MAX_SSE_PER_IP", 10),

		SessionTTLMs:      p.int64("SESSION_TTL_MS", 120_000),
		RadioTTLMs:        p.int64("RADIO_TTL_MS", 300_000),
		StateTTLMs:        p.int64("STATE_TTL_MS", 25_000),
		StateMinGapMs:     p.int64("STATE_MIN_GAP_MS", 700),
		WebTokenTTLMs:     p.int64("WEB_TOKEN_TTL_MS", 600_000),
		JoinDedupWindowMs: p.int64("JOIN_DEDUP_WINDOW_MS", 10_000),
		MuteDedupWindowMs: p.int64("MUTE_DEDUP_WINDOW_MS", 1_500),
		PushHeartbeatMs:   p.int64("PUSH_HEARTBEAT_MS", 20_000),
	}

	if parseErr := errors.Join(p.errs...); parseErr != nil {
		return nil, parseErr
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsDevelopment returns true when running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.ServerEnv == "development"
}

// TokensEnabled returns true when a token signing secret is configured.
func (c *Config) TokensEnabled() bool {
	return c.WebTokenSecret != ""
}

// WebTokenTTL returns the capability token lifetime as a time.Duration.
func (c *Config) WebTokenTTL() time.Duration {
	return time.Duration(c.WebTokenTTLMs) * time.Millisecond
}

func (c *Config) validate() error {
	var errs []error

	if c.ServerPort < 1 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535"))
	}
	if c.MaxSSEPerUser < 1 {
		errs = append(errs, fmt.Errorf("MAX_SSE_PER_USER must be at least 1"))
	}
	if c.MaxSSEPerIP < 1 {
		errs = append(errs, fmt.Errorf("MAX_SSE_PER_IP must be at least 1"))
	}

	for _, v := range []struct {
		name string
		ms   int64
	}{
		{"SESSION_TTL_MS", c.SessionTTLMs},
		{"RADIO_TTL_MS", c.RadioTTLMs},
		{"STATE_TTL_MS", c.StateTTLMs},
		{"WEB_TOKEN_TTL_MS", c.WebTokenTTLMs},
		{"PUSH_HEARTBEAT_MS", c.PushHeartbeatMs},
	} {
		if v.ms < 1 {
			errs = append(errs, fmt.Errorf("%s must be at least 1", v.name))
		}
	}
	if c.StateMinGapMs < 0 {
		errs = append(errs, fmt.Errorf("STATE_MIN_GAP_MS must not be negative"))
	}
	if c.JoinDedupWindowMs < 0 {
		errs = append(errs, fmt.Errorf("JOIN_DEDUP_WINDOW_MS must not be negative"))
	}
	if c.MuteDedupWindowMs < 0 {
		errs = append(errs, fmt.Errorf("MUTE_DEDUP_WINDOW_MS must not be negative"))
	}

	return errors.Join(errs...)
}

// parser collects parse errors so Load can report all invalid values at once.
type parser struct {
	errs []error
}

func (p *parser) int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid value for %s: %q (expected integer)", key, v))
		return fallback
	}
	return n
}

func (p *parser) int64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid value for %s: %q (expected integer)", key, v))
		return fallback
	}
	return n
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
