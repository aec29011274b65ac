package token

import (
	"sync"

	"github.com/bloxradio/bloxradio-server/internal/clock"
)

// Epochs tracks the per-user revocation watermark. A token whose issuedAt predates
// the user's epoch is rejected, which revokes every outstanding token for that user
// in O(1) without a token table.
type Epochs struct {
	mu        sync.RWMutex
	revokedAt map[string]int64
	clock     clock.Clock
}

// NewEpochs creates an empty revocation-epoch table.
func NewEpochs(clk clock.Clock) *Epochs {
	return &Epochs{revokedAt: make(map[string]int64), clock: clk}
}

// Revoke advances the user's epoch to now and returns it. Epochs never move
// backwards.
func (e *Epochs) Revoke(username string) int64 {
	now := e.clock.NowMs()

	e.mu.Lock()
	defer e.mu.Unlock()
	if cur, ok := e.revokedAt[username]; ok && cur >= now {
		return cur
	}
	e.revokedAt[username] = now
	return now
}

// RevokedAt returns the user's epoch, or 0 when none is recorded.
func (e *Epochs) RevokedAt(username string) int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.revokedAt[username]
}

// Sweep drops epochs older than keepMs. Once every token that could predate the
// epoch has itself expired, the entry no longer affects verification. Returns the
// number of entries removed.
func (e *Epochs) Sweep(keepMs int64) int {
	cutoff := e.clock.NowMs() - keepMs

	e.mu.Lock()
	defer e.mu.Unlock()
	removed := 0
	for user, at := range e.revokedAt {
		if at <= cutoff {
			delete(e.revokedAt, user)
			removed++
		}
	}
	return removed
}
