package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/padariapdv/internal/app/system/offline"
	"github.com/dalemusser/padariapdv/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client  *mongo.Client // nil when the memory backend is in use
	Offline *offline.Manager
	Log     *zap.Logger
}

// NewHandler constructs a health Handler. client may be nil.
func NewHandler(client *mongo.Client, mgr *offline.Manager, logger *zap.Logger) *Handler {
	return &Handler{
		Client:  client,
		Offline: mgr,
		Log:     logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Bucket   string `json:"bucket,omitempty"`
	Entries  int64  `json:"entries"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "bucket":"padaria-pdv-v1", "entries":11 }
//
// On DB or storage failure: 503 and
//
//	{ "status":"error", "message":"Database unavailable", "error":"…"}
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "memory",
	}

	if h.Client != nil {
		if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
			h.Log.Error("health-check: mongo ping failed", zap.Error(err))
			h.fail(w, resp, "disconnected", "Database unavailable", err)
			return
		}
		resp.Database = "connected"
	}

	stats, err := h.Offline.Stats(ctx)
	if err != nil {
		h.Log.Error("health-check: cache stats failed", zap.Error(err))
		h.fail(w, resp, resp.Database, "Cache storage unavailable", err)
		return
	}
	resp.Bucket = stats.Bucket
	resp.Entries = stats.Entries

	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) fail(w http.ResponseWriter, resp healthResponse, database, msg string, err error) {
	w.WriteHeader(http.StatusServiceUnavailable)
	resp.Status = "error"
	resp.Database = database
	resp.Message = msg
	resp.Error = err.Error()
	_ = json.NewEncoder(w).Encode(resp)
}
