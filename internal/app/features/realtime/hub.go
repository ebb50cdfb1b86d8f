// internal/app/features/realtime/hub.go
//
// Package realtime serves the websocket endpoint that pushes posting events
// to connected clients.
//
// A client connects with the same bearer token it uses for GraphQL (header,
// "token" query parameter, or the cookie session). A verified caller joins
// its private channel, plus the admins channel for administrators. Callers
// without a valid token stay connected but join no channels.
package realtime

import (
	"sync"

	"go.uber.org/zap"
)

// Hub tracks the live connections of this process.
type Hub struct {
	mu    sync.Mutex
	conns map[string]*Conn
	log   *zap.Logger
}

// NewHub returns an empty Hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{conns: make(map[string]*Conn), log: logger}
}

func (h *Hub) add(c *Conn) {
	h.mu.Lock()
	h.conns[c.ID] = c
	n := len(h.conns)
	h.mu.Unlock()
	h.log.Debug("realtime connection opened", zap.String("conn_id", c.ID), zap.Int("live", n))
}

func (h *Hub) remove(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c.ID)
	n := len(h.conns)
	h.mu.Unlock()
	h.log.Debug("realtime connection closed", zap.String("conn_id", c.ID), zap.Int("live", n))
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Snapshot returns the live connections at this moment.
func (h *Hub) Snapshot() []*Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c)
	}
	return out
}

// CloseAll closes every live connection with reason.
func (h *Hub) CloseAll(reason string) {
	for _, c := range h.Snapshot() {
		c.Close(reason)
	}
}
