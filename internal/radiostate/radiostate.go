// Package radiostate keeps the last-known playback snapshot per user. Writes are
// throttled by a minimum update gap; reads compute a live position from the
// snapshot's wall time and expose a listener view sorted by recency. Stale
// snapshots are purged both on read and by the scheduler.
package radiostate

import (
	"sort"
	"sync"

	"github.com/bloxradio/bloxradio-server/internal/clock"
	"github.com/bloxradio/bloxradio-server/internal/presence"
)

// Snapshot is a user's reported playback state.
type Snapshot struct {
	TrackIndex int
	TrackName  string
	PositionAt float64 // seconds
	IsPlaying  bool
	Muted      bool
	ServerTs   int64 // wall time the position refers to
	UpdatedAt  int64 // last accepted mutation
}

// Update carries the fields of a state write. Nil fields keep the previous value
// (or the zero value on an initial write).
type Update struct {
	TrackIndex *int
	TrackName  *string
	PositionAt *float64
	IsPlaying  *bool
	Muted      *bool
}

// Listener is one row of the active-listener view.
type Listener struct {
	Username   string  `json:"username"`
	TrackIndex int     `json:"trackIndex"`
	TrackName  string  `json:"trackName"`
	PositionAt float64 `json:"positionSec"`
	IsPlaying  bool    `json:"isPlaying"`
	Muted      bool    `json:"muted"`
	LastSeenMs int64   `json:"lastSeenMs"`
}

// Table is the concurrency-safe username → snapshot map.
type Table struct {
	mu       sync.Mutex
	snaps    map[string]Snapshot
	minGapMs int64
	ttlMs    int64
	clock    clock.Clock
}

// NewTable creates an empty radio-state table.
func NewTable(minGapMs, ttlMs int64, clk clock.Clock) *Table {
	return &Table{
		snaps:    make(map[string]Snapshot),
		minGapMs: minGapMs,
		ttlMs:    ttlMs,
		clock:    clk,
	}
}

// Put merges an update into the user's snapshot. It returns false when the write
// arrives before the minimum gap since the last accepted mutation has elapsed.
// PositionAt is clamped to zero or above.
func (t *Table) Put(username string, up Update) bool {
	key := presence.Normalize(username)
	now := t.clock.NowMs()

	t.mu.Lock()
	defer t.mu.Unlock()

	snap, exists := t.snaps[key]
	if exists && now-snap.UpdatedAt < t.minGapMs {
		return false
	}

	if up.TrackIndex != nil {
		snap.TrackIndex = *up.TrackIndex
	}
	if up.TrackName != nil {
		snap.TrackName = *up.TrackName
	}
	if up.PositionAt != nil {
		snap.PositionAt = *up.PositionAt
	}
	if snap.PositionAt < 0 {
		snap.PositionAt = 0
	}
	if up.IsPlaying != nil {
		snap.IsPlaying = *up.IsPlaying
	}
	if up.Muted != nil {
		snap.Muted = *up.Muted
	}
	snap.ServerTs = now
	snap.UpdatedAt = now

	t.snaps[key] = snap
	return true
}

// Get returns the user's snapshot and whether one exists.
func (t *Table) Get(username string) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap, ok := t.snaps[presence.Normalize(username)]
	return snap, ok
}

// Remove deletes the user's snapshot.
func (t *Table) Remove(username string) {
	t.mu.Lock()
	delete(t.snaps, presence.Normalize(username))
	t.mu.Unlock()
}

// Active returns the listener view: one row per fresh snapshot whose user passes
// the inGame filter, with a live position for playing tracks, sorted ascending by
// lastSeenMs.
func (t *Table) Active(inGame func(username string) bool) []Listener {
	now := t.clock.NowMs()

	t.mu.Lock()
	defer t.mu.Unlock()

	listeners := make([]Listener, 0, len(t.snaps))
	for user, snap := range t.snaps {
		if now-snap.UpdatedAt > t.ttlMs {
			continue
		}
		if inGame != nil && !inGame(user) {
			continue
		}

		position := snap.PositionAt
		if snap.IsPlaying {
			elapsed := float64(now-snap.ServerTs) / 1000
			if elapsed > 0 {
				position += elapsed
			}
		}

		listeners = append(listeners, Listener{
			Username:   user,
			TrackIndex: snap.TrackIndex,
			TrackName:  snap.TrackName,
			PositionAt: position,
			IsPlaying:  snap.IsPlaying,
			Muted:      snap.Muted,
			LastSeenMs: now - snap.UpdatedAt,
		})
	}

	sort.Slice(listeners, func(i, j int) bool {
		return listeners[i].LastSeenMs < listeners[j].LastSeenMs
	})
	return listeners
}

// Sweep drops snapshots older than the TTL and returns the number removed.
func (t *Table) Sweep() int {
	cutoff := t.clock.NowMs() - t.ttlMs

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for user, snap := range t.snaps {
		if snap.UpdatedAt <= cutoff {
			delete(t.snaps, user)
			removed++
		}
	}
	return removed
}
