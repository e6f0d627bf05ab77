package workspace

import (
	"sync"
	"time"

	"github.com/wolfman30/reserv/internal/session"
)

// Event types pushed to the browser.
const (
	EventAuthChanged = "auth_changed"
	EventNavigate    = "navigate"
)

const eventBuffer = 8

// Event is one message on the tab's event stream.
type Event struct {
	Type     string           `json:"type"`
	LoggedIn bool             `json:"loggedIn"`
	Profile  *session.Profile `json:"profile,omitempty"`
	Path     string           `json:"path,omitempty"`
	At       time.Time        `json:"at"`
}

// hub fans events out to subscribers. Slow subscribers drop events rather
// than block the publisher.
type hub struct {
	mu     sync.Mutex
	subs   map[uint64]chan Event
	next   uint64
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[uint64]chan Event)}
}

func (h *hub) subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan Event, eventBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

func (h *hub) publish(ev Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	dropped := 0
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			dropped++
		}
	}
	return dropped
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
