package dashboard

import (
	"net/http"

	"github.com/banana-studio/banana-api/internal/pkg/errorhandler"
	"github.com/banana-studio/banana-api/internal/pkg/response"
)

// Handler handles dashboard HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates new dashboard handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// DashboardStats handles GET /admin-get-dashboard-stats
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Dashboard(r.Context())
	if err != nil {
		errorhandler.Internal(r.Context(), w, err, "dashboard stats")
		return
	}
	response.OK(w, stats)
}

// SystemStats handles GET /admin-get-system-stats
func (h *Handler) SystemStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	stats, err := h.service.System(r.Context(), ParsePeriod(q.Get("period")), ParseGranularity(q.Get("granularity")))
	if err != nil {
		errorhandler.Internal(r.Context(), w, err, "system stats")
		return
	}
	response.OK(w, stats)
}
