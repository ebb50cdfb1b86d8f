// internal/app/features/realtime/handler.go
package realtime

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dalemusser/voluntahub/internal/app/system/auth"
	"github.com/dalemusser/voluntahub/internal/app/system/notify"
	"github.com/dalemusser/voluntahub/internal/app/system/origins"
	"github.com/dalemusser/voluntahub/internal/app/system/pubsub"
)

// Handler upgrades requests to websocket connections.
type Handler struct {
	Broker     pubsub.Broker
	Hub        *Hub
	SessionMgr *auth.SessionManager
	Log        *zap.Logger

	upgrader websocket.Upgrader
}

// NewHandler builds a Handler. allowedOrigins limits browser origins; "*"
// allows any origin and an empty list allows only this host.
func NewHandler(broker pubsub.Broker, hub *Hub, sessionMgr *auth.SessionManager, allowedOrigins []string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		Broker:     broker,
		Hub:        hub,
		SessionMgr: sessionMgr,
		Log:        logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// originChecker accepts requests without an Origin header (non-browser
// clients), browsers on this host, and browsers from an allowed origin.
func originChecker(allowed []string) func(*http.Request) bool {
	list := origins.New(allowed)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origins.SameHost(r) || list.Allows(origin)
	}
}

// handshakeToken returns the bearer token from the Authorization header or,
// for browsers that cannot set headers on a websocket, the token parameter.
func handshakeToken(r *http.Request) string {
	if t := auth.BearerToken(r); t != "" {
		return t
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// Serve handles GET /realtime.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	var (
		id       *auth.Identity
		rejected bool
	)
	if h.SessionMgr != nil {
		id, rejected = h.SessionMgr.Resolve(r, handshakeToken(r))
	}

	var channels []string
	if id != nil {
		channels = notify.ChannelsFor(id.Email, id.IsAdmin())
	}

	// Subscribe before the handshake completes so nothing published after
	// the client sees the upgrade is missed.
	sub := h.Broker.Subscribe(channels...)

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		h.Log.Debug("realtime upgrade failed", zap.Error(err))
		return
	}

	c := &Conn{
		ID:       uuid.NewString(),
		Channels: channels,
		identity: id,
		ws:       ws,
		sub:      sub,
		hub:      h.Hub,
		log:      h.Log,
		seen:     newRecentIDs(dedupWindow),
		done:     make(chan struct{}),
	}
	h.Hub.add(c)

	fields := []zap.Field{zap.String("conn_id", c.ID), zap.Strings("channels", channels)}
	if id != nil {
		fields = append(fields, zap.String("user_id", id.ID))
	}
	if rejected {
		fields = append(fields, zap.Bool("token_rejected", true))
	}
	h.Log.Info("realtime client connected", fields...)

	go c.readPump()
	c.writePump()
}
