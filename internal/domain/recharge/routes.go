package recharge

import (
	"github.com/go-chi/chi/v5"

	"github.com/banana-studio/banana-api/internal/domain/admin"
)

// Mount registers recharge endpoints on r, which must already require an
// authenticated user.
func (h *Handler) Mount(r chi.Router, authz admin.Authorizer) {
	r.Get("/get-recharge-plans", h.GetPlans)
	r.Get("/get-payment-info", h.GetPaymentInfo)
	r.Post("/create-recharge-request", h.CreateRequest)
	r.Get("/get-my-recharge-records", h.ListMine)

	r.Group(func(r chi.Router) {
		r.Use(admin.RequirePrivilege(authz, admin.Admin))
		r.Get("/admin-get-recharge-records", h.List)
		r.Post("/admin-update-recharge-status", h.UpdateStatus)
		r.Post("/admin-add-recharge", h.ManualAdd)
	})
}
