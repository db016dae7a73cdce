package offline

import "github.com/go-chi/chi/v5"

// Routes returns a router that sends every method and path to h. It is
// mounted last, at /.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Handle("/*", h)
	return r
}
