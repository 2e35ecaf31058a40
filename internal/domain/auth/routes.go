package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Mount registers auth endpoints on r. Public endpoints are wrapped with the
// optional throttles; /me requires authMiddleware.
func (h *Handler) Mount(r chi.Router, authMiddleware func(http.Handler) http.Handler, throttles ...func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(throttles...)
		r.Post("/send-verification-code", h.SendVerificationCode)
		r.Post("/register-with-code", h.RegisterWithCode)
		r.Post("/login", h.Login)
		r.Post("/refresh-token", h.Refresh)
		r.Post("/logout", h.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/me", h.Me)
	})
}
