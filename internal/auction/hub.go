// Package auction implements the live auction core: the bid engine that
// enforces the strictly-increasing price invariant, the per-lot subscriber
// hub that fans events out to WebSocket clients, and the HTTP/WS handlers.
package auction

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/lotline/auction-engine/internal/metrics"
)

// Conn is a single subscriber connection. Send must report delivery failure
// to the caller and must preserve the order of successive calls; the hub
// treats a failed Send as an implicit disconnect.
type Conn interface {
	Send(data []byte) error
	Close() error
}

// Hub maintains the per-lot subscriber registry and broadcasts lot events.
// It holds no persistent state; a restarted process starts with an empty
// registry. Safe for concurrent use from connection handlers and the
// broadcast path.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[Conn]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[Conn]bool),
	}
}

// Join subscribes conn to a lot's event stream. Joining the same
// (lot, conn) pair twice yields a single membership.
func (h *Hub) Join(lotID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subscribers[lotID]
	if !ok {
		set = make(map[Conn]bool)
		h.subscribers[lotID] = set
	}
	if !set[conn] {
		set[conn] = true
		metrics.WebSocketSubscribers.Inc()
	}
	slog.Info("subscriber joined", "lot_id", lotID, "subscribers", len(set))
}

// Leave removes conn from a lot's subscriber set. Leaving an absent pair is
// a no-op: disconnects race with broadcast pruning and both paths may fire.
// Empty sets are reclaimed so idle lots do not pin registry memory.
func (h *Hub) Leave(lotID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(lotID, conn)
}

func (h *Hub) removeLocked(lotID string, conn Conn) {
	set, ok := h.subscribers[lotID]
	if !ok || !set[conn] {
		return
	}
	delete(set, conn)
	metrics.WebSocketSubscribers.Dec()
	if len(set) == 0 {
		delete(h.subscribers, lotID)
	}
}

// SubscribersOf returns a snapshot of a lot's subscribers. The snapshot is
// safe to iterate while Join/Leave proceed concurrently.
func (h *Hub) SubscribersOf(lotID string) []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.subscribers[lotID]
	conns := make([]Conn, 0, len(set))
	for conn := range set {
		conns = append(conns, conn)
	}
	return conns
}

// Publish delivers an event to every current subscriber of a lot. Each
// delivery is attempted independently; a subscriber whose Send fails is
// removed from the registry and closed, without affecting delivery to the
// rest. Failed deliveries are not retried.
func (h *Hub) Publish(lotID string, ev Event) {
	conns := h.SubscribersOf(lotID)
	if len(conns) == 0 {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	var failed []Conn
	for _, conn := range conns {
		if err := conn.Send(data); err != nil {
			failed = append(failed, conn)
		}
	}

	for _, conn := range failed {
		h.Leave(lotID, conn)
		conn.Close()
	}
	if len(failed) > 0 {
		slog.Info("pruned dead subscribers", "lot_id", lotID, "count", len(failed), "event", ev.Type)
	}
}

// CloseLot tears down a lot's entire subscriber set, closing every
// connection. Called after the lot_ended broadcast: an ended lot emits no
// further events, so retained subscriptions are reclaimed.
func (h *Hub) CloseLot(lotID string) {
	h.mu.Lock()
	set := h.subscribers[lotID]
	delete(h.subscribers, lotID)
	h.mu.Unlock()

	for conn := range set {
		metrics.WebSocketSubscribers.Dec()
		conn.Close()
	}
	if len(set) > 0 {
		slog.Info("lot subscriptions torn down", "lot_id", lotID, "count", len(set))
	}
}
