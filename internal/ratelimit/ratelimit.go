// Package ratelimit implements fixed-window request counters keyed by
// (scope, principal), where a principal is an IP, a username, or a composite. Each
// scope carries its own window and quota.
package ratelimit

import (
	"sync"

	"github.com/bloxradio/bloxradio-server/internal/clock"
)

// Scope names a rate-limited operation class.
type Scope string

const (
	ScopeVerify      Scope = "verify"
	ScopeSSEOpenIP   Scope = "sseOpenIp"
	ScopeSSEOpenUser Scope = "sseOpenUser"
	ScopeJoinIP      Scope = "joinIp"
	ScopeMuteIP      Scope = "muteIp"
	ScopeSyncIP      Scope = "syncIp"
	ScopeStateIP     Scope = "stateIp"
	ScopeActiveIP    Scope = "activeIp"
	ScopePollIP      Scope = "pollIp"
	ScopePresenceIP  Scope = "presenceIp"
)

// SweepCap bounds deletions per cleanup pass so a large table cannot stall the
// scheduler tick.
const SweepCap = 5000

// Quota is a fixed window configuration for one scope.
type Quota struct {
	WindowMs int64
	Max      int
}

// DefaultQuotas returns the per-scope defaults.
func DefaultQuotas() map[Scope]Quota {
	return map[Scope]Quota{
		ScopeVerify:      {WindowMs: 15_000, Max: 12},
		ScopeSSEOpenIP:   {WindowMs: 60_000, Max: 60},
		ScopeSSEOpenUser: {WindowMs: 60_000, Max: 60},
		ScopeJoinIP:      {WindowMs: 10_000, Max: 25},
		ScopeMuteIP:      {WindowMs: 10_000, Max: 25},
		ScopeSyncIP:      {WindowMs: 10_000, Max: 40},
		ScopeStateIP:     {WindowMs: 10_000, Max: 80},
		ScopeActiveIP:    {WindowMs: 10_000, Max: 40},
		ScopePollIP:      {WindowMs: 10_000, Max: 80},
		ScopePresenceIP:  {WindowMs: 10_000, Max: 200},
	}
}

type entry struct {
	count   int
	resetAt int64
}

// Limiter tracks fixed-window counters for every (scope, principal) pair.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	quotas  map[Scope]Quota
	clock   clock.Clock
}

// New creates a Limiter with the given quotas.
func New(quotas map[Scope]Quota, clk clock.Clock) *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		quotas:  quotas,
		clock:   clk,
	}
}

// Allow records a hit and reports whether the principal is within quota for the
// scope. Unknown scopes are never limited.
func (l *Limiter) Allow(scope Scope, principal string) bool {
	quota, ok := l.quotas[scope]
	if !ok {
		return true
	}

	now := l.clock.NowMs()
	key := string(scope) + ":" + principal

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || e.resetAt <= now {
		e = &entry{resetAt: now + quota.WindowMs}
		l.entries[key] = e
	}
	e.count++
	return e.count <= quota.Max
}

// Sweep evicts entries whose window has passed, deleting at most maxDeletes, and
// returns the number removed.
func (l *Limiter) Sweep(maxDeletes int) int {
	now := l.clock.NowMs()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, e := range l.entries {
		if removed >= maxDeletes {
			break
		}
		if e.resetAt <= now {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live counters.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
