package recharge

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/banana-studio/banana-api/internal/domain/admin"
	"github.com/banana-studio/banana-api/internal/domain/credit"
	"github.com/banana-studio/banana-api/internal/middleware"
	"github.com/banana-studio/banana-api/internal/pkg/errorhandler"
	"github.com/banana-studio/banana-api/internal/pkg/response"
	"github.com/banana-studio/banana-api/internal/pkg/storage"
	"github.com/banana-studio/banana-api/internal/pkg/validator"
)

const maxScreenshotBytes = 8 << 20

// Handler handles recharge HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates recharge handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetPlans handles GET /get-recharge-plans
func (h *Handler) GetPlans(w http.ResponseWriter, r *http.Request) {
	response.OK(w, Plans)
}

// GetPaymentInfo handles GET /get-payment-info
func (h *Handler) GetPaymentInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.PaymentInfo(r.Context())
	if err != nil {
		writeError(w, r, err, "get payment info")
		return
	}
	response.OK(w, info)
}

// CreateRequest handles POST /create-recharge-request. It accepts JSON or a
// multipart form with an optional "payment_screenshot" file.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var (
		req        CreateRequest
		screenshot io.Reader
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxScreenshotBytes)
		if err := r.ParseMultipartForm(maxScreenshotBytes); err != nil {
			response.BadRequest(w, "Invalid multipart form")
			return
		}
		var err error
		if req, err = formRequest(r); err != nil {
			response.BadRequest(w, err.Error())
			return
		}
		if file, _, err := r.FormFile("payment_screenshot"); err == nil {
			defer file.Close()
			screenshot = file
		}
	} else if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return
	}

	rec, err := h.service.CreateRequest(r.Context(), middleware.GetUserID(r.Context()), &req, screenshot)
	if err != nil {
		writeError(w, r, err, "create recharge request")
		return
	}
	response.Created(w, rec)
}

func formRequest(r *http.Request) (CreateRequest, error) {
	req := CreateRequest{
		PlanID:        r.FormValue("plan_id"),
		PaymentMethod: r.FormValue("payment_method"),
		Description:   r.FormValue("description"),
	}
	if raw := r.FormValue("credits_amount"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return req, errors.New("invalid credits_amount")
		}
		req.CreditsAmount = n
	}
	if raw := r.FormValue("payment_amount"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return req, errors.New("invalid payment_amount")
		}
		req.PaymentAmount = &d
	}
	return req, nil
}

// ListMine handles GET /get-my-recharge-records
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	limit, offset := response.ParsePage(r)
	records, total, err := h.service.ListMine(r.Context(), middleware.GetUserID(r.Context()), limit, offset)
	if err != nil {
		writeError(w, r, err, "list my recharge records")
		return
	}
	response.WithMeta(w, records, response.NewMeta(limit, offset, total))
}

// List handles GET /admin-get-recharge-records
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := response.ParsePage(r)
	q := r.URL.Query()

	filter := Filter{
		Status:        Status(q.Get("status")),
		UserSearch:    q.Get("user_search"),
		PaymentMethod: q.Get("payment_method"),
		Limit:         limit,
		Offset:        offset,
	}

	var err error
	if filter.MinAmount, err = optionalInt(q.Get("min_amount")); err != nil {
		response.BadRequest(w, "Invalid min_amount")
		return
	}
	if filter.MaxAmount, err = optionalInt(q.Get("max_amount")); err != nil {
		response.BadRequest(w, "Invalid max_amount")
		return
	}
	if filter.DateFrom, err = credit.ParseDate(q.Get("date_from"), false); err != nil {
		response.BadRequest(w, "Invalid date_from")
		return
	}
	if filter.DateTo, err = credit.ParseDate(q.Get("date_to"), true); err != nil {
		response.BadRequest(w, "Invalid date_to")
		return
	}

	result, err := h.service.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err, "list recharge records")
		return
	}
	response.OK(w, result)
}

// UpdateStatus handles POST /admin-update-recharge-status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if !decode(w, r, &req) {
		return
	}

	grant, _ := admin.GrantFromContext(r.Context())
	result, err := h.service.UpdateStatus(r.Context(), grant, &req)
	if err != nil {
		writeError(w, r, err, "update recharge status")
		return
	}
	response.OK(w, result)
}

// ManualAdd handles POST /admin-add-recharge
func (h *Handler) ManualAdd(w http.ResponseWriter, r *http.Request) {
	var req ManualAddRequest
	if !decode(w, r, &req) {
		return
	}

	grant, _ := admin.GrantFromContext(r.Context())
	result, err := h.service.ManualAdd(r.Context(), grant, &req)
	if err != nil {
		writeError(w, r, err, "add recharge")
		return
	}
	response.Created(w, result)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := response.DecodeJSON(r.Body, v); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return false
	}
	if errs := validator.Validate(v); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return false
	}
	return true
}

func optionalInt(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func writeError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	switch {
	case errors.Is(err, ErrRecordNotFound), errors.Is(err, ErrUserNotFound), errors.Is(err, credit.ErrUserNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		response.Error(w, http.StatusBadRequest, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrUnknownPlan), errors.Is(err, ErrAmountRequired),
		errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidPayment):
		response.BadRequest(w, err.Error())
	case errors.Is(err, storage.ErrFileTooLarge), errors.Is(err, storage.ErrInvalidMimeType), errors.Is(err, storage.ErrEmptyFile):
		response.BadRequest(w, err.Error())
	case errors.Is(err, credit.ErrReferenceConflict):
		response.Error(w, http.StatusBadRequest, "REFERENCE_CONFLICT", err.Error())
	default:
		errorhandler.Internal(r.Context(), w, err, operation)
	}
}
