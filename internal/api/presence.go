package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bloxradio/bloxradio-server/internal/httputil"
	"github.com/bloxradio/bloxradio-server/internal/presence"
)

// PostPresence handles POST /presence. The game server reports whether a user is
// currently in a session and whether they hold a pass.
func (s *State) PostPresence(c *fiber.Ctx) error {
	var body struct {
		Username string `json:"username"`
		InGame   *bool  `json:"inGame"`
		HavePass bool   `json:"havePass"`
	}
	if err := c.BodyParser(&body); err != nil || body.Username == "" {
		return httputil.MissingField(c, "username")
	}
	if body.InGame == nil {
		return httputil.MissingField(c, "inGame")
	}

	s.Presence.Set(body.Username, *body.InGame, body.HavePass)
	return httputil.OK(c)
}

// GetPresence handles GET /presence/:username.
func (s *State) GetPresence(c *fiber.Ctx) error {
	rec, exists := s.Presence.Get(c.Params("username"))
	return httputil.OKData(c, fiber.Map{
		"exists":   exists,
		"inGame":   rec.InGame,
		"havePass": rec.HavePass,
	})
}

func (s *State) normalizedParamUser(c *fiber.Ctx) string {
	return presence.Normalize(c.Params("username"))
}
