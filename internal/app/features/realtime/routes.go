// internal/app/features/realtime/routes.go
package realtime

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter mounted under /realtime.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Serve)
	return r
}
