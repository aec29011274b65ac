package httputil

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ClientIP resolves the client address used for rate limiting and subscriber caps:
// the first element of X-Forwarded-For when present, otherwise the peer address.
func ClientIP(c *fiber.Ctx) string {
	if fwd := c.Get("x-forwarded-for"); fwd != "" {
		first := fwd
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			first = fwd[:i]
		}
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return c.IP()
}
