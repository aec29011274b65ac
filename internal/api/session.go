package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/bloxradio/bloxradio-server/internal/event"
	"github.com/bloxradio/bloxradio-server/internal/httputil"
	"github.com/bloxradio/bloxradio-server/internal/pairing"
	"github.com/bloxradio/bloxradio-server/internal/presence"
)

// CreateSession handles POST /session/create (game server only). Issuing a code
// pre-empts the user's previous code, revokes all outstanding tokens for the user,
// clears their radio state, and kicks any open push subscribers, so exactly one
// device owns the link at a time.
func (s *State) CreateSession(c *fiber.Ctx) error {
	var body struct {
		Username string `json:"username"`
		HavePass bool   `json:"havePass"`
	}
	if err := c.BodyParser(&body); err != nil || body.Username == "" {
		return httputil.MissingField(c, "username")
	}

	username := presence.Normalize(body.Username)
	if !s.Presence.InGame(username) {
		return httputil.Fail(c, fiber.StatusForbidden, httputil.CodeNotInGame)
	}

	// Cross-map sequence in fixed order: pairing, revocation, radio state, push
	// hub. Each store is atomic on its own lock.
	code, exp, err := s.Pairing.Issue(username, body.HavePass)
	if err != nil {
		if errors.Is(err, pairing.ErrCodeGeneration) {
			return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeCodeGeneration)
		}
		s.Log.Error().Err(err).Str("handler", "session").Msg("unhandled pairing error")
		return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternal)
	}

	s.Epochs.Revoke(username)
	s.Radio.Remove(username)
	s.Hub.Broadcast(username, "radio", event.NewKick(s.Clock.NowMs(), "new_code"))

	if s.Metrics != nil {
		s.Metrics.CodesIssued.Inc()
	}
	s.Log.Info().Str("username", username).Msg("Pairing code issued")

	return httputil.OKData(c, fiber.Map{"code": code, "exp": exp})
}

// VerifySession handles POST /session/verify (rate-limited, unauthenticated). A
// valid code is consumed exactly once, whether or not the in-game recheck passes.
func (s *State) VerifySession(c *fiber.Ctx) error {
	var body struct {
		Code string `json:"code"`
	}
	if err := c.BodyParser(&body); err != nil || body.Code == "" {
		return httputil.MissingField(c, "code")
	}

	sess, ok := s.Pairing.Redeem(body.Code)
	if !ok {
		return httputil.SoftFail(c, httputil.CodeInvalidOrExpired)
	}
	if !s.Presence.InGame(sess.Username) {
		return httputil.SoftFail(c, httputil.CodeNotInGame)
	}

	resp := fiber.Map{"username": sess.Username, "havePass": sess.HavePass}
	if tok, exp, minted := s.Tokens.Mint(sess.Username); minted {
		resp["token"] = tok
		resp["tokenExp"] = exp
	}

	if s.Metrics != nil {
		s.Metrics.CodesRedeemed.Inc()
	}
	s.Log.Info().Str("username", sess.Username).Msg("Pairing code redeemed")

	return httputil.OKData(c, resp)
}
