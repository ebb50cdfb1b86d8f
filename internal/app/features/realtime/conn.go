package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dalemusser/voluntahub/internal/app/system/auth"
	"github.com/dalemusser/voluntahub/internal/app/system/limits"
	"github.com/dalemusser/voluntahub/internal/app/system/pubsub"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	dedupWindow = 32
)

// Conn is one websocket client.
type Conn struct {
	ID       string
	Channels []string

	identity *auth.Identity
	ws       *websocket.Conn
	sub      pubsub.Subscription
	hub      *Hub
	log      *zap.Logger
	seen     *recentIDs

	once sync.Once
	done chan struct{}
}

// Identity returns the verified caller, or nil for an anonymous connection.
func (c *Conn) Identity() *auth.Identity {
	return c.identity
}

// Done is closed when the connection ends.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close ends the connection, telling the client why. Safe to call more
// than once and from any goroutine.
func (c *Conn) Close(reason string) {
	c.once.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = c.ws.Close()
		c.sub.Close()
		c.hub.remove(c)
		if reason != "" {
			c.log.Debug("realtime connection closed by server", zap.String("conn_id", c.ID), zap.String("reason", reason))
		}
	})
}

// readPump consumes client frames so pongs and close frames are processed.
func (c *Conn) readPump() {
	defer c.Close("")

	c.ws.SetReadLimit(limits.MaxRealtimeMessage)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Debug("realtime read failed", zap.String("conn_id", c.ID), zap.Error(err))
			}
			return
		}
	}
}

// writePump is the only writer of data frames. It delivers each message
// once even when it arrives on more than one of the connection's channels.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close("")
	}()

	for {
		select {
		case <-c.done:
			return
		case msg, ok := <-c.sub.C():
			if !ok {
				return
			}
			if !c.seen.add(msg.ID) {
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.log.Debug("realtime write failed", zap.String("conn_id", c.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// recentIDs remembers the last few message ids.
type recentIDs struct {
	ring []string
	set  map[string]struct{}
	next int
}

func newRecentIDs(n int) *recentIDs {
	return &recentIDs{ring: make([]string, n), set: make(map[string]struct{}, n)}
}

// add records id and reports whether it was new. Empty ids are always new.
func (r *recentIDs) add(id string) bool {
	if id == "" {
		return true
	}
	if _, ok := r.set[id]; ok {
		return false
	}
	if old := r.ring[r.next]; old != "" {
		delete(r.set, old)
	}
	r.ring[r.next] = id
	r.set[id] = struct{}{}
	r.next = (r.next + 1) % len(r.ring)
	return true
}
