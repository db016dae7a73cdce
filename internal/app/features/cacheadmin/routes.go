package cacheadmin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter mounted under /_offline. installGuard wraps the
// install endpoint (the rate limiter in production); nil leaves it unguarded.
func Routes(h *Handler, installGuard func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/status", h.ServeStatus)
	if installGuard != nil {
		r.With(installGuard).Post("/install", h.ServeInstall)
	} else {
		r.Post("/install", h.ServeInstall)
	}
	return r
}
