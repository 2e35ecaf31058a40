package credit

import (
	"github.com/go-chi/chi/v5"

	"github.com/banana-studio/banana-api/internal/domain/admin"
)

// Mount registers credit endpoints on r, which must already require an
// authenticated user.
func (h *Handler) Mount(r chi.Router, authz admin.Authorizer) {
	r.Get("/get-user-credits", h.GetUserCredits)
	r.Post("/update-user-credits", h.UpdateUserCredits)
	r.Get("/get-credit-transactions", h.GetCreditTransactions)
	r.Post("/create-credit-transaction", h.CreateCreditTransaction)
	r.Post("/daily-check-in", h.DailyCheckIn)

	r.Group(func(r chi.Router) {
		r.Use(admin.RequirePrivilege(authz, admin.Admin))
		r.Post("/add-credits-for-user", h.AddCreditsForUser)
		r.Get("/admin-get-users-with-credits", h.UsersWithCredits)
		r.Get("/admin-get-transactions-with-users", h.TransactionsWithUsers)
	})
}
