// internal/app/features/health/routes.go
package health

import "github.com/go-chi/chi/v5"

// Routes serves GET /health: overall status, the storage backend's state
// (memory, connected or disconnected), the active bucket name and its entry
// count. A storage failure answers 503.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Serve)
	return r
}
