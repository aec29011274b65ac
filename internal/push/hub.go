// Package push is the per-user fan-out plane for server-sent events. The hub
// indexes open subscriptions by lowercased username with a parallel per-IP count,
// and writes are best-effort: each subscriber owns a bounded channel and frames are
// dropped rather than letting a slow consumer stall unrelated work.
package push

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bloxradio/bloxradio-server/internal/presence"
)

// subscriberBuffer is the per-subscriber outbound channel depth. A full buffer
// means the consumer has stalled; the frame is dropped and the pull queue remains
// the fallback.
const subscriberBuffer = 32

var (
	// ErrUserLimit means the user already has the maximum number of open
	// subscriptions.
	ErrUserLimit = errors.New("per-user subscriber limit reached")
	// ErrIPLimit means the client IP already has the maximum number of open
	// subscriptions.
	ErrIPLimit = errors.New("per-ip subscriber limit reached")
	// ErrShutdown means the hub is no longer accepting subscribers.
	ErrShutdown = errors.New("push hub shut down")
)

// Frame is one server-sent event.
type Frame struct {
	Event string
	Data  []byte
}

// Encode renders the SSE wire form `event: <name>\ndata: <json>\n\n`.
func (f Frame) Encode() []byte {
	buf := make([]byte, 0, len(f.Event)+len(f.Data)+16)
	buf = append(buf, "event: "...)
	buf = append(buf, f.Event...)
	buf = append(buf, "\ndata: "...)
	buf = append(buf, f.Data...)
	buf = append(buf, "\n\n"...)
	return buf
}

// Subscriber is one open push connection.
type Subscriber struct {
	ID       uuid.UUID
	Username string
	IP       string
	frames   chan Frame
}

// Frames is the subscriber's outbound channel. It is closed when the subscriber is
// removed from the hub.
func (s *Subscriber) Frames() <-chan Frame {
	return s.frames
}

// Hub tracks active subscribers per user and per IP.
type Hub struct {
	mu         sync.RWMutex
	byUser     map[string]map[uuid.UUID]*Subscriber
	byIP       map[string]int
	maxPerUser int
	maxPerIP   int
	shutdown   bool
	log        zerolog.Logger
}

// NewHub creates a push hub with the given subscriber caps.
func NewHub(maxPerUser, maxPerIP int, logger zerolog.Logger) *Hub {
	return &Hub{
		byUser:     make(map[string]map[uuid.UUID]*Subscriber),
		byIP:       make(map[string]int),
		maxPerUser: maxPerUser,
		maxPerIP:   maxPerIP,
		log:        logger.With().Str("component", "push").Logger(),
	}
}

// Subscribe admits a new subscriber for the user, enforcing the per-user set cap
// and the per-IP count cap.
func (h *Hub) Subscribe(username, ip string) (*Subscriber, error) {
	key := presence.Normalize(username)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.shutdown {
		return nil, ErrShutdown
	}
	if len(h.byUser[key]) >= h.maxPerUser {
		return nil, ErrUserLimit
	}
	if h.byIP[ip] >= h.maxPerIP {
		return nil, ErrIPLimit
	}

	sub := &Subscriber{
		ID:       uuid.New(),
		Username: key,
		IP:       ip,
		frames:   make(chan Frame, subscriberBuffer),
	}

	set, ok := h.byUser[key]
	if !ok {
		set = make(map[uuid.UUID]*Subscriber)
		h.byUser[key] = set
	}
	set[sub.ID] = sub
	h.byIP[ip]++

	h.log.Debug().Str("username", key).Str("ip", ip).Int("open", len(set)).Msg("Subscriber admitted")
	return sub, nil
}

// Unsubscribe removes the subscriber, decrements its IP count, and closes its
// channel. Safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub *Subscriber) {
	set, ok := h.byUser[sub.Username]
	if !ok {
		return
	}
	if _, present := set[sub.ID]; !present {
		return
	}

	delete(set, sub.ID)
	if len(set) == 0 {
		delete(h.byUser, sub.Username)
	}
	if h.byIP[sub.IP] <= 1 {
		delete(h.byIP, sub.IP)
	} else {
		h.byIP[sub.IP]--
	}
	// Closing under the hub lock: Broadcast sends while holding at least a read
	// lock, so no send can race the close.
	close(sub.frames)
}

// Broadcast marshals v and fans the frame out to every subscriber for the user.
// Sends never block: a subscriber with a full buffer misses the frame. Returns the
// number of subscribers the frame was delivered to.
func (h *Hub) Broadcast(username, eventName string, v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Warn().Err(err).Str("event", eventName).Msg("Failed to marshal push payload")
		return 0
	}
	frame := Frame{Event: eventName, Data: data}
	key := presence.Normalize(username)

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, sub := range h.byUser[key] {
		select {
		case sub.frames <- frame:
			delivered++
		default:
			h.log.Debug().Str("username", key).Msg("Subscriber buffer full, frame dropped")
		}
	}
	return delivered
}

// SubscriberCount returns the number of open subscriptions for the user.
func (h *Hub) SubscriberCount(username string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[presence.Normalize(username)])
}

// IPCount returns the number of open subscriptions from the IP.
func (h *Hub) IPCount(ip string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.byIP[ip]
}

// Shutdown closes every subscriber channel and rejects further subscriptions.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.shutdown = true
	for _, set := range h.byUser {
		for _, sub := range set {
			close(sub.frames)
		}
	}
	h.byUser = make(map[string]map[uuid.UUID]*Subscriber)
	h.byIP = make(map[string]int)
	h.log.Info().Msg("Push hub shut down")
}
