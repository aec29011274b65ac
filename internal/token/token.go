// Package token mints and verifies the self-contained capability tokens handed to
// browsers after pairing. A token is `b64url(payload).b64url(signature)` where the
// payload is a JSON record of username and validity window and the signature is
// HMAC-SHA256 over the encoded payload. There is no per-token store: per-user mass
// revocation works by advancing a revocation epoch, and any token issued before the
// epoch is rejected.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/bloxradio/bloxradio-server/internal/clock"
)

// Kind enumerates the closed set of verification failures. Values are surfaced
// verbatim in API error fields.
type Kind string

const (
	KindDisabled     Kind = "token_disabled"
	KindMissing      Kind = "missing_token"
	KindBadFormat    Kind = "bad_token_format"
	KindBadSignature Kind = "bad_signature"
	KindBadPayload   Kind = "bad_payload"
	KindExpired      Kind = "token_expired"
	KindRevoked      Kind = "token_revoked"
)

// Error is a verification failure carrying its kind.
type Error struct {
	Kind Kind
}

func (e *Error) Error() string {
	return string(e.Kind)
}

// Claims is the token payload.
type Claims struct {
	Username  string `json:"username"`
	IssuedAt  int64  `json:"issuedAt"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Minter signs and verifies capability tokens. A Minter with an empty secret is
// disabled: Mint returns ok=false and Verify fails with KindDisabled, leaving the
// open-access policy decision to the caller.
type Minter struct {
	secret []byte
	ttlMs  int64
	epochs *Epochs
	clock  clock.Clock
}

// NewMinter creates a Minter. The secret may be empty to disable token issuance.
func NewMinter(secret string, ttlMs int64, epochs *Epochs, clk clock.Clock) *Minter {
	var key []byte
	if secret != "" {
		key = []byte(secret)
	}
	return &Minter{secret: key, ttlMs: ttlMs, epochs: epochs, clock: clk}
}

// Enabled returns true when a signing secret is configured.
func (m *Minter) Enabled() bool {
	return len(m.secret) > 0
}

// Mint returns a signed token for the lowercased username and its expiry. ok is
// false when no secret is configured.
func (m *Minter) Mint(username string) (tok string, expiresAt int64, ok bool) {
	if !m.Enabled() {
		return "", 0, false
	}

	now := m.clock.NowMs()
	claims := Claims{
		Username:  username,
		IssuedAt:  now,
		ExpiresAt: now + m.ttlMs,
	}
	raw, err := json.Marshal(claims)
	if err != nil {
		return "", 0, false
	}

	payload := base64.RawURLEncoding.EncodeToString(raw)
	return payload + "." + m.sign(payload), claims.ExpiresAt, true
}

// Verify parses the two-part form, recomputes the HMAC, and checks the validity
// window and the user's revocation epoch. Failures are always a *Error.
func (m *Minter) Verify(tok string) (Claims, error) {
	if !m.Enabled() {
		return Claims{}, &Error{Kind: KindDisabled}
	}
	if tok == "" {
		return Claims{}, &Error{Kind: KindMissing}
	}

	payload, sig, found := strings.Cut(tok, ".")
	if !found || payload == "" || sig == "" || strings.Contains(sig, ".") {
		return Claims{}, &Error{Kind: KindBadFormat}
	}

	// hmac.Equal is constant-time; the length check comes first for free since
	// differing lengths cannot be equal digests.
	want := m.sign(payload)
	if len(sig) != len(want) || !hmac.Equal([]byte(sig), []byte(want)) {
		return Claims{}, &Error{Kind: KindBadSignature}
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return Claims{}, &Error{Kind: KindBadPayload}
	}
	var claims Claims
	if err := json.Unmarshal(raw, &claims); err != nil || claims.Username == "" {
		return Claims{}, &Error{Kind: KindBadPayload}
	}

	now := m.clock.NowMs()
	if claims.ExpiresAt <= now {
		return Claims{}, &Error{Kind: KindExpired}
	}
	if m.epochs != nil && claims.IssuedAt < m.epochs.RevokedAt(claims.Username) {
		return Claims{}, &Error{Kind: KindRevoked}
	}

	return claims, nil
}

func (m *Minter) sign(payload string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// IsKind reports whether err is a token error of the given kind.
func IsKind(err error, kind Kind) bool {
	te, ok := err.(*Error)
	return ok && te.Kind == kind
}
