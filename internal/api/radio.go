package api

import (
	"math"

	"github.com/gofiber/fiber/v2"

	"github.com/bloxradio/bloxradio-server/internal/event"
	"github.com/bloxradio/bloxradio-server/internal/httputil"
	"github.com/bloxradio/bloxradio-server/internal/presence"
	"github.com/bloxradio/bloxradio-server/internal/radiostate"
)

// RadioJoin handles POST /radio/join. The join lands on the game-server pull
// queue; rapid repeats inside the dedup window are ignored.
func (s *State) RadioJoin(c *fiber.Ctx) error {
	var body struct {
		Username string `json:"username"`
	}
	if err := c.BodyParser(&body); err != nil || body.Username == "" {
		return httputil.MissingField(c, "username")
	}

	username := presence.Normalize(body.Username)
	if ok, resp := s.authorizeUser(c, username); !ok {
		return resp
	}
	if !s.Presence.InGame(username) {
		return httputil.Fail(c, fiber.StatusForbidden, httputil.CodeNotInGame)
	}

	if !s.Events.Append(username, event.NewJoin(s.Clock.NowMs())) {
		if s.Metrics != nil {
			s.Metrics.EventsCoalesced.Inc()
		}
		return httputil.OKData(c, fiber.Map{"ignored": true})
	}
	if s.Metrics != nil {
		s.Metrics.EventsAppended.WithLabelValues(string(event.KindRadioJoin)).Inc()
	}
	return httputil.OK(c)
}

// RadioMute handles POST /radio/mute (browser, token-authenticated).
func (s *State) RadioMute(c *fiber.Ctx) error {
	return s.handleMute(c, false)
}

// RadioMuteServer handles POST /radio/mute/server (game server, shared key). The
// server-key middleware has already run; the token check is skipped.
func (s *State) RadioMuteServer(c *fiber.Ctx) error {
	return s.handleMute(c, true)
}

// handleMute appends a mute/unmute to the browser pull queue and fans it out on
// the push channel. The queue append always happens even with no live subscriber,
// so a momentarily absent browser can still learn the current audio-control state.
func (s *State) handleMute(c *fiber.Ctx, viaServerKey bool) error {
	var body struct {
		Username string `json:"username"`
		Muted    *bool  `json:"muted"`
	}
	if err := c.BodyParser(&body); err != nil || body.Username == "" {
		return httputil.MissingField(c, "username")
	}
	if body.Muted == nil {
		return httputil.MissingField(c, "muted")
	}

	username := presence.Normalize(body.Username)
	if !viaServerKey {
		if ok, resp := s.authorizeUser(c, username); !ok {
			return resp
		}
	}
	if !s.Presence.InGame(username) {
		return httputil.Fail(c, fiber.StatusForbidden, httputil.CodeNotInGame)
	}

	ev := event.NewMute(s.Clock.NowMs(), *body.Muted)
	if !s.Events.Append(username, ev) {
		if s.Metrics != nil {
			s.Metrics.EventsCoalesced.Inc()
		}
		return httputil.OKData(c, fiber.Map{"ignored": true})
	}
	if s.Metrics != nil {
		s.Metrics.EventsAppended.WithLabelValues(string(ev.Type)).Inc()
	}

	pushed := s.Hub.Broadcast(username, "radio", ev) > 0
	return httputil.OKData(c, fiber.Map{"pushed": pushed})
}

// RadioSync handles GET /radio/sync/:username. It drains the browser-audience
// partition of the user's pull queue.
func (s *State) RadioSync(c *fiber.Ctx) error {
	username := s.normalizedParamUser(c)
	if ok, resp := s.authorizeUser(c, username); !ok {
		return resp
	}

	events := s.Events.DrainWeb(username)
	if events == nil {
		events = []event.Event{}
	}
	return httputil.OKData(c, fiber.Map{"events": events})
}

// RadioPoll handles GET /radio/poll/:username (game server only). It drains the
// game-server partition of the user's pull queue.
func (s *State) RadioPoll(c *fiber.Ctx) error {
	events := s.Events.DrainGame(s.normalizedParamUser(c))
	if events == nil {
		events = []event.Event{}
	}
	return httputil.OKData(c, fiber.Map{"events": events})
}

// RadioState handles POST /radio/state. Missing or non-finite numeric fields fall
// back to the previous snapshot's values; writes inside the minimum gap are
// ignored.
func (s *State) RadioState(c *fiber.Ctx) error {
	var body struct {
		Username    string   `json:"username"`
		TrackIndex  *int     `json:"trackIndex"`
		TrackName   *string  `json:"trackName"`
		PositionSec *float64 `json:"positionSec"`
		IsPlaying   *bool    `json:"isPlaying"`
		Muted       *bool    `json:"muted"`
	}
	if err := c.BodyParser(&body); err != nil || body.Username == "" {
		return httputil.MissingField(c, "username")
	}

	username := presence.Normalize(body.Username)
	if ok, resp := s.authorizeUser(c, username); !ok {
		return resp
	}
	if !s.Presence.InGame(username) {
		return httputil.Fail(c, fiber.StatusForbidden, httputil.CodeNotInGame)
	}

	if body.PositionSec != nil && (math.IsNaN(*body.PositionSec) || math.IsInf(*body.PositionSec, 0)) {
		body.PositionSec = nil
	}

	accepted := s.Radio.Put(username, radiostate.Update{
		TrackIndex: body.TrackIndex,
		TrackName:  body.TrackName,
		PositionAt: body.PositionSec,
		IsPlaying:  body.IsPlaying,
		Muted:      body.Muted,
	})
	if !accepted {
		return httputil.OKData(c, fiber.Map{"ignored": true})
	}
	return httputil.OK(c)
}

// RadioActive handles GET /radio/active: everyone with a fresh snapshot who is
// still in-game, most recently updated first.
func (s *State) RadioActive(c *fiber.Ctx) error {
	listeners := s.Radio.Active(s.Presence.InGame)
	return httputil.OKData(c, fiber.Map{"listeners": listeners})
}
