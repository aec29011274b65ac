// Package pairing implements the one-shot code registry linking a game session to a
// browser. A code is issued by the authenticated game server, redeemed at most once
// by a browser, and expires after the session TTL. At most one live code exists per
// user: issuing a new one pre-empts the old.
package pairing

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"

	"github.com/bloxradio/bloxradio-server/internal/clock"
	"github.com/bloxradio/bloxradio-server/internal/presence"
)

const (
	// Alphabet excludes ambiguous symbols (0/O, 1/I/L). Its length divides 256, so
	// byte-modulo indexing is unbiased.
	Alphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength = 7

	maxGenerateAttempts = 12
)

// ErrCodeGeneration is returned when every generation attempt collided with a live
// code.
var ErrCodeGeneration = errors.New("code_generation_failed")

// Session is a pending pairing record.
type Session struct {
	Username string
	HavePass bool
	Exp      int64
}

// NormalizeCode uppercases and trims a code before lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Registry is the two-way code ↔ username map. The secondary byUser index enforces
// the one-live-code-per-user invariant.
type Registry struct {
	mu     sync.Mutex
	byCode map[string]Session
	byUser map[string]string
	ttlMs  int64
	clock  clock.Clock
}

// NewRegistry creates an empty pairing registry with the given code TTL.
func NewRegistry(ttlMs int64, clk clock.Clock) *Registry {
	return &Registry{
		byCode: make(map[string]Session),
		byUser: make(map[string]string),
		ttlMs:  ttlMs,
		clock:  clk,
	}
}

// Issue deletes any existing code for the user, generates a fresh one, and records
// it. The username must already be normalized by the caller's presence lookup.
func (r *Registry) Issue(username string, havePass bool) (code string, exp int64, err error) {
	key := presence.Normalize(username)
	now := r.clock.NowMs()

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byUser[key]; ok {
		delete(r.byCode, old)
		delete(r.byUser, key)
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		candidate, genErr := generateCode()
		if genErr != nil {
			return "", 0, ErrCodeGeneration
		}
		if existing, collides := r.byCode[candidate]; collides && existing.Exp > now {
			continue
		}
		exp = now + r.ttlMs
		r.byCode[candidate] = Session{Username: key, HavePass: havePass, Exp: exp}
		r.byUser[key] = candidate
		return candidate, exp, nil
	}

	return "", 0, ErrCodeGeneration
}

// Redeem looks up a code, and if present deletes it and returns the session. The
// record is consumed even when the caller's follow-up preconditions fail, so a code
// can never be tried twice.
func (r *Registry) Redeem(code string) (Session, bool) {
	key := NormalizeCode(code)
	now := r.clock.NowMs()

	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byCode[key]
	if !ok {
		return Session{}, false
	}

	delete(r.byCode, key)
	if r.byUser[sess.Username] == key {
		delete(r.byUser, sess.Username)
	}

	if sess.Exp <= now {
		return Session{}, false
	}
	return sess, true
}

// ActiveCode returns the user's live code, if any.
func (r *Registry) ActiveCode(username string) (string, bool) {
	key := presence.Normalize(username)
	now := r.clock.NowMs()

	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.byUser[key]
	if !ok {
		return "", false
	}
	if sess, live := r.byCode[code]; !live || sess.Exp <= now {
		return "", false
	}
	return code, true
}

// Sweep drops expired codes and their secondary-index entries, returning the number
// removed.
func (r *Registry) Sweep() int {
	now := r.clock.NowMs()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for code, sess := range r.byCode {
		if sess.Exp <= now {
			delete(r.byCode, code)
			if r.byUser[sess.Username] == code {
				delete(r.byUser, sess.Username)
			}
			removed++
		}
	}
	return removed
}

// Len returns the number of live codes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byCode)
}

func generateCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, CodeLength)
	for i, b := range buf {
		out[i] = Alphabet[int(b)%len(Alphabet)]
	}
	return string(out), nil
}
