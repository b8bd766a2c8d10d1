// Package notify fans discrete state changes out to subscribers.
package notify

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the per-subscriber channel size.
const DefaultBuffer = 1024

// Field names the aggregate a Change refers to.
type Field string

const (
	FieldDamage       Field = "damage"
	FieldHeals        Field = "heals"
	FieldRetribution  Field = "retribution"
	FieldDebuffs      Field = "debuffs"
	FieldIncoming     Field = "incoming"
	FieldOutgoing     Field = "outgoing"
	FieldTarget       Field = "target"
	FieldCasting      Field = "casting"
	FieldPaths        Field = "paths"
	FieldSearching    Field = "searching"
	FieldSelectedPath Field = "selected_path"
	FieldReset        Field = "reset"
)

// Change is one state change. Player is empty for changes that are not
// keyed by player. Value carries a short rendering of the new value
// (a spell name, a target name, a path); readers fetch full state from the
// snapshot accessors.
type Change struct {
	Seq    uint64 `json:"seq"`
	Field  Field  `json:"field"`
	Player string `json:"player,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Subscription receives changes on C until Close is called or the hub closes.
type Subscription struct {
	C <-chan Change

	ch   chan Change
	hub  *Hub
	once sync.Once
}

// Close unsubscribes and closes C. Safe to call multiple times.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Hub broadcasts changes to every subscriber without blocking the publisher.
// A subscriber whose buffer is full misses the change and the drop is counted.
type Hub struct {
	buffer int
	log    *slog.Logger

	mu     sync.Mutex
	seq    uint64
	subs   map[*Subscription]struct{}
	closed bool

	dropped atomic.Int64
}

// New creates a Hub. buffer <= 0 selects DefaultBuffer; a nil logger discards.
func New(buffer int, log *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Hub{
		buffer: buffer,
		log:    log,
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a new subscriber. After Close the returned
// subscription's channel is already closed.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan Change, h.buffer)
	s := &Subscription{C: ch, ch: ch, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		s.once.Do(func() {})
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

// Publish assigns the next sequence number and delivers the change.
// It returns the assigned sequence number, or 0 after Close.
func (h *Hub) Publish(field Field, player, value string) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0
	}

	h.seq++
	c := Change{Seq: h.seq, Field: field, Player: player, Value: value}
	for s := range h.subs {
		select {
		case s.ch <- c:
		default:
			n := h.dropped.Add(1)
			h.log.Debug("dropped change for slow subscriber", "field", field, "dropped_total", n)
		}
	}
	return c.Seq
}

// Seq returns the last assigned sequence number.
func (h *Hub) Seq() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seq
}

// Dropped returns how many deliveries were skipped because a subscriber
// was not keeping up.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes every subscription. Later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		close(s.ch)
	}
	h.subs = nil
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.ch)
}
