// Package event holds the per-user pull queues that back the push channel. Every
// radio mutation appends a tagged event; browser and game-server consumers drain
// disjoint audience partitions, and rapid duplicates are coalesced at append time.
package event

import (
	"sync"

	"github.com/bloxradio/bloxradio-server/internal/clock"
)

// Kind is the closed set of event types.
type Kind string

const (
	KindRadioJoin   Kind = "RADIO_JOIN"
	KindRadioMute   Kind = "RADIO_MUTE"
	KindRadioUnmute Kind = "RADIO_UNMUTE"
	KindKick        Kind = "KICK"
)

// Audience labels the intended consumer of an event. An empty audience is drained
// by the game server along with AudienceRoblox.
type Audience string

const (
	AudienceWeb    Audience = "web"
	AudienceRoblox Audience = "roblox"
)

// Event is a tagged record. Constructors populate only the fields legal for each
// kind; Muted is a pointer so that absent and false are distinguishable on the
// wire.
type Event struct {
	Type     Kind     `json:"type"`
	Audience Audience `json:"audience,omitempty"`
	Ts       int64    `json:"ts"`
	Muted    *bool    `json:"muted,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

// NewJoin returns a RADIO_JOIN for the game-server audience.
func NewJoin(ts int64) Event {
	return Event{Type: KindRadioJoin, Audience: AudienceRoblox, Ts: ts}
}

// NewMute returns a RADIO_MUTE or RADIO_UNMUTE for the browser audience.
func NewMute(ts int64, muted bool) Event {
	kind := KindRadioMute
	if !muted {
		kind = KindRadioUnmute
	}
	return Event{Type: kind, Audience: AudienceWeb, Ts: ts, Muted: &muted}
}

// NewKick returns a KICK with the given reason. Kicks ride the push channel and are
// not queued, but share the event shape.
func NewKick(ts int64, reason string) Event {
	return Event{Type: KindKick, Ts: ts, Reason: reason}
}

func (e Event) isMuteKind() bool {
	return e.Type == KindRadioMute || e.Type == KindRadioUnmute
}

// Store holds one ordered event queue per user.
type Store struct {
	mu           sync.Mutex
	queues       map[string][]Event
	joinWindowMs int64
	muteWindowMs int64
	ttlMs        int64
	clock        clock.Clock
}

// NewStore creates an empty event store with the given dedup windows and TTL.
func NewStore(joinWindowMs, muteWindowMs, ttlMs int64, clk clock.Clock) *Store {
	return &Store{
		queues:       make(map[string][]Event),
		joinWindowMs: joinWindowMs,
		muteWindowMs: muteWindowMs,
		ttlMs:        ttlMs,
		clock:        clk,
	}
}

// Append adds an event to the user's queue. It returns false when the event is
// coalesced against the last queued record: a RADIO_JOIN within the join window, or
// a mute/unmute with the same muted value within the mute window.
func (s *Store) Append(username string, ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.queues[username]
	if len(q) > 0 {
		last := q[len(q)-1]
		switch {
		case ev.Type == KindRadioJoin && last.Type == KindRadioJoin &&
			ev.Ts-last.Ts < s.joinWindowMs:
			return false
		case ev.isMuteKind() && last.isMuteKind() &&
			ev.Muted != nil && last.Muted != nil && *ev.Muted == *last.Muted &&
			ev.Ts-last.Ts < s.muteWindowMs:
			return false
		}
	}

	s.queues[username] = append(q, ev)
	return true
}

// DrainWeb removes and returns the user's web-audience events in append order,
// leaving other audiences queued.
func (s *Store) DrainWeb(username string) []Event {
	return s.drain(username, func(e Event) bool { return e.Audience == AudienceWeb })
}

// DrainGame removes and returns the user's game-server events (absent or roblox
// audience) in append order, leaving web events queued.
func (s *Store) DrainGame(username string) []Event {
	return s.drain(username, func(e Event) bool {
		return e.Audience == "" || e.Audience == AudienceRoblox
	})
}

// drain partitions the queue under one lock: matched live events are returned,
// unmatched live events stay, and anything past the TTL is dropped either way.
func (s *Store) drain(username string, match func(Event) bool) []Event {
	cutoff := s.clock.NowMs() - s.ttlMs

	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[username]
	if !ok {
		return nil
	}

	var drained []Event
	kept := q[:0]
	for _, ev := range q {
		if ev.Ts <= cutoff {
			continue
		}
		if match(ev) {
			drained = append(drained, ev)
		} else {
			kept = append(kept, ev)
		}
	}

	if len(kept) == 0 {
		delete(s.queues, username)
	} else {
		s.queues[username] = kept
	}
	return drained
}

// Sweep drops events older than the TTL across all users, removing emptied queues.
// Returns the number of events dropped.
func (s *Store) Sweep() int {
	cutoff := s.clock.NowMs() - s.ttlMs

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for user, q := range s.queues {
		kept := q[:0]
		for _, ev := range q {
			if ev.Ts > cutoff {
				kept = append(kept, ev)
			} else {
				dropped++
			}
		}
		if len(kept) == 0 {
			delete(s.queues, user)
		} else {
			s.queues[user] = kept
		}
	}
	return dropped
}

// QueueLen returns the number of queued events for a user.
func (s *Store) QueueLen(username string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[username])
}
