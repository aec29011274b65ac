// Package api maps the external HTTP surface onto the core state: presence,
// pairing, tokens, event queues, the push hub, radio state, and rate limits.
package api

import (
	"github.com/rs/zerolog"

	"github.com/bloxradio/bloxradio-server/internal/clock"
	"github.com/bloxradio/bloxradio-server/internal/config"
	"github.com/bloxradio/bloxradio-server/internal/event"
	"github.com/bloxradio/bloxradio-server/internal/metrics"
	"github.com/bloxradio/bloxradio-server/internal/pairing"
	"github.com/bloxradio/bloxradio-server/internal/presence"
	"github.com/bloxradio/bloxradio-server/internal/push"
	"github.com/bloxradio/bloxradio-server/internal/radiostate"
	"github.com/bloxradio/bloxradio-server/internal/ratelimit"
	"github.com/bloxradio/bloxradio-server/internal/token"
)

// State owns every core map. It is created once in main and passed to each
// handler; there are no package-level singletons.
type State struct {
	Cfg   *config.Config
	Clock clock.Clock
	Log   zerolog.Logger

	Presence *presence.Store
	Pairing  *pairing.Registry
	Tokens   *token.Minter
	Epochs   *token.Epochs
	Events   *event.Store
	Hub      *push.Hub
	Radio    *radiostate.Table
	Limits   *ratelimit.Limiter
	Metrics  *metrics.Metrics // optional

	startedAtMs int64
}

// NewState wires the full core from configuration. The metrics argument may be
// nil.
func NewState(cfg *config.Config, clk clock.Clock, m *metrics.Metrics, logger zerolog.Logger) *State {
	epochs := token.NewEpochs(clk)
	return &State{
		Cfg:   cfg,
		Clock: clk,
		Log:   logger,

		Presence: presence.NewStore(clk),
		Pairing:  pairing.NewRegistry(cfg.SessionTTLMs, clk),
		Tokens:   token.NewMinter(cfg.WebTokenSecret, cfg.WebTokenTTLMs, epochs, clk),
		Epochs:   epochs,
		Events:   event.NewStore(cfg.JoinDedupWindowMs, cfg.MuteDedupWindowMs, cfg.RadioTTLMs, clk),
		Hub:      push.NewHub(cfg.MaxSSEPerUser, cfg.MaxSSEPerIP, logger),
		Radio:    radiostate.NewTable(cfg.StateMinGapMs, cfg.StateTTLMs, clk),
		Limits:   ratelimit.New(ratelimit.DefaultQuotas(), clk),
		Metrics:  m,

		startedAtMs: clk.NowMs(),
	}
}

// UptimeSeconds returns whole seconds since the state was created.
func (s *State) UptimeSeconds() int64 {
	return (s.Clock.NowMs() - s.startedAtMs) / 1000
}
