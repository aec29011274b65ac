// Package httputil holds the response envelope, error-code surface, request
// logging, and client-IP extraction shared by every handler.
package httputil

import (
	"github.com/gofiber/fiber/v2"
)

// Error codes are a closed set: only these values appear in the "error" field of a
// response. Token-error kinds from the token package are surfaced verbatim and
// belong to the same set.
const (
	CodeUnauthorized      = "unauthorized"
	CodeNotInGame         = "not_in_game"
	CodeTokenUserMismatch = "token_user_mismatch"
	CodeRateLimited       = "rate_limited"
	CodeInvalidOrExpired  = "invalid_or_expired"
	CodeCodeGeneration    = "code_generation_failed"
	CodeNotFound          = "not_found"
	CodeInternal          = "internal_error"
)

// OK sends `{"ok":true}`.
func OK(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}

// OKData sends a 200 response with ok:true merged into the given fields.
func OKData(c *fiber.Ctx, data fiber.Map) error {
	body := fiber.Map{"ok": true}
	for k, v := range data {
		body[k] = v
	}
	return c.JSON(body)
}

// Fail sends `{"ok":false,"error":code}` with the given HTTP status.
func Fail(c *fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"ok": false, "error": code})
}

// SoftFail sends a business-rule failure: HTTP 200 with ok:false and the code.
func SoftFail(c *fiber.Ctx, code string) error {
	return c.JSON(fiber.Map{"ok": false, "error": code})
}

// MissingField sends a 400 naming the missing or invalid field.
func MissingField(c *fiber.Ctx, field string) error {
	return Fail(c, fiber.StatusBadRequest, "missing_"+field)
}
