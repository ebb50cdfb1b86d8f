package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/voluntahub/internal/app/system/pubsub"
	"github.com/dalemusser/voluntahub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnCounter reports how many realtime clients are connected.
type ConnCounter interface {
	Count() int
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client *mongo.Client
	Broker pubsub.Broker
	Conns  ConnCounter
	Log    *zap.Logger
}

// NewHandler constructs a health Handler. broker and conns may be nil.
func NewHandler(client *mongo.Client, broker pubsub.Broker, conns ConnCounter, logger *zap.Logger) *Handler {
	return &Handler{
		Client: client,
		Broker: broker,
		Conns:  conns,
		Log:    logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	Broker      string `json:"broker,omitempty"`
	Connections int    `json:"connections"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "broker":"redis", "connections":3 }
//
// On DB failure: 503 and
//
//	{ "status":"error", "database":"disconnected", "message":"Database unavailable", "error":"…"}
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
	}
	if h.Broker != nil {
		resp.Broker = h.Broker.Kind()
	}
	if h.Conns != nil {
		resp.Connections = h.Conns.Count()
	}

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	_ = json.NewEncoder(w).Encode(resp)
}
