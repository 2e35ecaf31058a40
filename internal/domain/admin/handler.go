package admin

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/banana-studio/banana-api/internal/middleware"
	"github.com/banana-studio/banana-api/internal/pkg/errorhandler"
	"github.com/banana-studio/banana-api/internal/pkg/response"
	"github.com/banana-studio/banana-api/internal/pkg/storage"
	"github.com/banana-studio/banana-api/internal/pkg/validator"
)

const maxQRUploadBytes = 4 << 20

// Handler handles admin HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates admin handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// VerifyAdmin handles GET /verify-admin. Non-admins get is_admin=false.
func (h *Handler) VerifyAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp, err := h.service.Verify(ctx, middleware.GetUserID(ctx), middleware.GetEmail(ctx))
	if err != nil {
		errorhandler.Internal(ctx, w, err, "verify admin")
		return
	}
	response.OK(w, resp)
}

// UpdateSettings handles POST /admin-update-admin-settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req UpdateSettingsRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(ctx, errs)
		response.ValidationError(w, errs)
		return
	}

	grant, _ := GrantFromContext(ctx)
	result, err := h.service.UpdateSettings(ctx, grant, &req)
	if err != nil {
		h.writeError(w, r, err, "update admin settings")
		return
	}
	response.OK(w, result)
}

// ListSettings handles GET /admin-get-settings
func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.ListSettings(r.Context())
	if err != nil {
		errorhandler.Internal(r.Context(), w, err, "list settings")
		return
	}
	response.OK(w, settings)
}

// UploadPaymentQR handles POST /admin-upload-payment-qr (multipart field "file")
func (h *Handler) UploadPaymentQR(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxQRUploadBytes)
	if err := r.ParseMultipartForm(maxQRUploadBytes); err != nil {
		response.BadRequest(w, "Invalid multipart form")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "file is required")
		return
	}
	defer file.Close()

	grant, _ := GrantFromContext(ctx)
	profile, err := h.service.UploadPaymentQR(ctx, grant, file)
	if err != nil {
		h.writeError(w, r, err, "upload payment qr")
		return
	}
	response.OK(w, profile)
}

// ListAdmins handles GET /admin-get-admin-users
func (h *Handler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	limit, offset := response.ParsePage(r)
	q := r.URL.Query()

	result, err := h.service.ListAdmins(r.Context(), ListAdminsFilter{
		Role:   q.Get("admin_level"),
		Search: q.Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.writeError(w, r, err, "list admins")
		return
	}
	response.OK(w, result)
}

// ListAuditLogs handles GET /admin-get-audit-logs
func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := response.ParsePage(r)
	q := r.URL.Query()

	filter := AuditFilter{Action: q.Get("action"), Limit: limit, Offset: offset}
	if raw := q.Get("admin_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(w, "Invalid admin_id")
			return
		}
		filter.AdminID = &id
	}

	result, err := h.service.ListAuditLogs(r.Context(), filter)
	if err != nil {
		errorhandler.Internal(r.Context(), w, err, "list audit logs")
		return
	}
	response.OK(w, result)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	switch {
	case errors.Is(err, ErrNotAdmin), errors.Is(err, ErrSuperAdminRequired):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrAdminNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrNothingToUpdate), errors.Is(err, ErrInvalidSetting), errors.Is(err, ErrInvalidAdminLevel):
		response.BadRequest(w, err.Error())
	case errors.Is(err, storage.ErrFileTooLarge), errors.Is(err, storage.ErrInvalidMimeType), errors.Is(err, storage.ErrEmptyFile):
		response.BadRequest(w, err.Error())
	default:
		errorhandler.Internal(r.Context(), w, err, operation)
	}
}
