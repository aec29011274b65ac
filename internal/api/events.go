package api

import (
	"bufio"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/bloxradio/bloxradio-server/internal/httputil"
	"github.com/bloxradio/bloxradio-server/internal/push"
	"github.com/bloxradio/bloxradio-server/internal/ratelimit"
)

// StreamEvents handles GET /events/:username, the push channel. Admission order:
// per-IP open rate, per-user open rate, token check, then the hub's subscriber
// caps. After admission the stream opens with a hello event and carries radio
// events plus periodic ping heartbeats until either side closes.
func (s *State) StreamEvents(c *fiber.Ctx) error {
	username := s.normalizedParamUser(c)
	ip := httputil.ClientIP(c)

	if !s.Limits.Allow(ratelimit.ScopeSSEOpenIP, ip) ||
		!s.Limits.Allow(ratelimit.ScopeSSEOpenUser, username) {
		if s.Metrics != nil {
			s.Metrics.RateLimited.WithLabelValues(string(ratelimit.ScopeSSEOpenIP)).Inc()
		}
		return httputil.Fail(c, fiber.StatusTooManyRequests, httputil.CodeRateLimited)
	}

	if ok, resp := s.authorizeUser(c, username); !ok {
		return resp
	}

	sub, err := s.Hub.Subscribe(username, ip)
	if err != nil {
		return httputil.Fail(c, fiber.StatusTooManyRequests, httputil.CodeRateLimited)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	heartbeat := time.Duration(s.Cfg.PushHeartbeatMs) * time.Millisecond
	if s.Metrics != nil {
		s.Metrics.PushSubscribers.Inc()
	}

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer func() {
			s.Hub.Unsubscribe(sub)
			if s.Metrics != nil {
				s.Metrics.PushSubscribers.Dec()
			}
		}()

		hello, _ := json.Marshal(fiber.Map{"ok": true, "username": username})
		if !writeFrame(w, push.Frame{Event: "hello", Data: hello}) {
			return
		}

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case frame, open := <-sub.Frames():
				if !open {
					return
				}
				if !writeFrame(w, frame) {
					return
				}
			case <-ticker.C:
				if !writeFrame(w, push.Frame{Event: "ping", Data: []byte("{}")}) {
					return
				}
			}
		}
	}))

	return nil
}

// writeFrame writes and flushes one SSE frame. A failed flush means the peer went
// away; the caller tears the subscription down.
func writeFrame(w *bufio.Writer, frame push.Frame) bool {
	if _, err := w.Write(frame.Encode()); err != nil {
		return false
	}
	return w.Flush() == nil
}
