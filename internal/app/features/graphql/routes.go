// internal/app/features/graphql/routes.go
package graphql

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter mounted under /graphql.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Serve)
	r.Post("/", h.Serve)
	return r
}
