package admin

import (
	"github.com/go-chi/chi/v5"
)

// Mount registers admin endpoints on r, which must already require an
// authenticated user.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/verify-admin", h.VerifyAdmin)

	r.Group(func(r chi.Router) {
		r.Use(RequirePrivilege(h.service, Admin))
		r.Post("/admin-update-admin-settings", h.UpdateSettings)
		r.Post("/admin-upload-payment-qr", h.UploadPaymentQR)
		r.Get("/admin-get-settings", h.ListSettings)
	})

	r.Group(func(r chi.Router) {
		r.Use(RequirePrivilege(h.service, SuperAdmin))
		r.Get("/admin-get-admin-users", h.ListAdmins)
		r.Get("/admin-get-audit-logs", h.ListAuditLogs)
	})
}
