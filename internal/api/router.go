package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bloxradio/bloxradio-server/internal/httputil"
	"github.com/bloxradio/bloxradio-server/internal/ratelimit"
)

// Register wires every route onto the app.
func Register(app *fiber.App, s *State) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("bloxradio coordination service")
	})
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return httputil.OKData(c, fiber.Map{"uptimeSec": s.UptimeSeconds()})
	})
	if s.Metrics != nil {
		app.Get("/metrics", s.Metrics.Handler())
	}

	app.Post("/presence", s.RateLimit(ratelimit.ScopePresenceIP, byIP), s.PostPresence)
	app.Get("/presence/:username", s.GetPresence)

	app.Post("/session/create", s.RequireServerKey(), s.CreateSession)
	app.Post("/session/verify", s.RateLimit(ratelimit.ScopeVerify, byIP), s.VerifySession)

	app.Get("/events/:username", s.StreamEvents)

	app.Post("/radio/join", s.RateLimit(ratelimit.ScopeJoinIP, byIP), s.RadioJoin)
	app.Post("/radio/mute", s.RateLimit(ratelimit.ScopeMuteIP, byIP), s.RadioMute)
	app.Post("/radio/mute/server", s.RequireServerKey(), s.RateLimit(ratelimit.ScopeMuteIP, byIP), s.RadioMuteServer)
	app.Get("/radio/sync/:username", s.RateLimit(ratelimit.ScopeSyncIP, byIP), s.RadioSync)
	app.Get("/radio/poll/:username", s.RequireServerKey(), s.RateLimit(ratelimit.ScopePollIP, byIP), s.RadioPoll)
	app.Post("/radio/state", s.RateLimit(ratelimit.ScopeStateIP, byIP), s.RadioState)
	app.Get("/radio/active", s.RateLimit(ratelimit.ScopeActiveIP, byIP), s.RadioActive)
}
