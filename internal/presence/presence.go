// Package presence tracks the game server's assertion of which users are currently
// inside a session. Records have no intrinsic TTL; they are consulted as a
// precondition by most write paths.
package presence

import (
	"strings"
	"sync"

	"github.com/bloxradio/bloxradio-server/internal/clock"
)

// Record is a user's last reported presence.
type Record struct {
	InGame    bool
	HavePass  bool
	UpdatedAt int64
}

// Normalize lowercases and trims a username so that all presence, pairing, token,
// and radio lookups agree on the key.
func Normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Store is a concurrency-safe username → presence map.
type Store struct {
	mu    sync.RWMutex
	users map[string]Record
	clock clock.Clock
}

// NewStore creates an empty presence store.
func NewStore(clk clock.Clock) *Store {
	return &Store{users: make(map[string]Record), clock: clk}
}

// Set creates or overwrites the user's presence record.
func (s *Store) Set(username string, inGame, havePass bool) {
	key := Normalize(username)

	s.mu.Lock()
	s.users[key] = Record{InGame: inGame, HavePass: havePass, UpdatedAt: s.clock.NowMs()}
	s.mu.Unlock()
}

// Get returns the user's presence record and whether one exists.
func (s *Store) Get(username string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[Normalize(username)]
	return rec, ok
}

// InGame reports whether the user is currently in a game session.
func (s *Store) InGame(username string) bool {
	rec, ok := s.Get(username)
	return ok && rec.InGame
}
