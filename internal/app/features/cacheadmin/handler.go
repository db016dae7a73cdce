// Package cacheadmin exposes read and refresh operations on the offline
// asset bucket.
package cacheadmin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/padariapdv/internal/app/system/offline"
	"github.com/dalemusser/padariapdv/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Handler serves the /_offline endpoints.
type Handler struct {
	Offline *offline.Manager
	Log     *zap.Logger
}

// NewHandler constructs a cacheadmin Handler.
func NewHandler(mgr *offline.Manager, logger *zap.Logger) *Handler {
	return &Handler{Offline: mgr, Log: logger}
}

type statusResponse struct {
	offline.Stats
	BasePath string   `json:"base_path"`
	Strategy string   `json:"strategy"`
	Policy   string   `json:"install_policy"`
	Manifest []string `json:"manifest"`
}

type installResponse struct {
	Report  offline.InstallReport `json:"report"`
	Deleted []string              `json:"deleted"`
	Error   string                `json:"error,omitempty"`
}

// ServeStatus handles GET /_offline/status.
func (h *Handler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Lookup())
	defer cancel()

	stats, err := h.Offline.Stats(ctx)
	if err != nil {
		h.Log.Error("cache status failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}

	cfg := h.Offline.Config()
	writeJSON(w, http.StatusOK, statusResponse{
		Stats:    stats,
		BasePath: cfg.BasePath,
		Strategy: string(cfg.Strategy),
		Policy:   string(cfg.InstallPolicy),
		Manifest: cfg.Manifest,
	})
}

// ServeInstall handles POST /_offline/install. It re-runs Install and, only
// when that succeeds, Activate.
func (h *Handler) ServeInstall(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Install())
	defer cancel()

	report, err := h.Offline.Install(ctx)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, offline.ErrInstall) {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, installResponse{Report: report, Deleted: []string{}, Error: err.Error()})
		return
	}

	deleted, err := h.Offline.Activate(ctx)
	if deleted == nil {
		deleted = []string{}
	}
	if err != nil {
		h.Log.Error("activate after install failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, installResponse{Report: report, Deleted: deleted, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, installResponse{Report: report, Deleted: deleted})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
