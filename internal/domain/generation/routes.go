package generation

import "github.com/go-chi/chi/v5"

// Mount registers generation endpoints on r, which must already require an
// authenticated user.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/create-generation", h.Create)
	r.Get("/get-generations", h.List)
	r.Get("/get-generation", h.Get)
}
