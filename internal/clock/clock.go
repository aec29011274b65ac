// Package clock provides the millisecond time source shared by every TTL-indexed
// structure. Stores take a Clock rather than calling time.Now so that expiry and
// coalescing behaviour is testable without sleeping.
package clock

import (
	"sync"
	"time"
)

// Clock yields the current wall time in milliseconds.
type Clock interface {
	NowMs() int64
}

type systemClock struct{}

func (systemClock) NowMs() int64 {
	return time.Now().UnixMilli()
}

// System returns the real wall clock.
func System() Clock {
	return systemClock{}
}

// Manual is a hand-advanced clock for tests.
type Manual struct {
	mu sync.Mutex
	ms int64
}

// NewManual returns a manual clock starting at the given millisecond timestamp.
func NewManual(startMs int64) *Manual {
	return &Manual{ms: startMs}
}

func (m *Manual) NowMs() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ms
}

// Advance moves the clock forward by d milliseconds.
func (m *Manual) Advance(d int64) {
	m.mu.Lock()
	m.ms += d
	m.mu.Unlock()
}

// Set moves the clock to the given absolute millisecond timestamp.
func (m *Manual) Set(ms int64) {
	m.mu.Lock()
	m.ms = ms
	m.mu.Unlock()
}
