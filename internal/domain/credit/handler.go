package credit

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/banana-studio/banana-api/internal/domain/admin"
	"github.com/banana-studio/banana-api/internal/middleware"
	"github.com/banana-studio/banana-api/internal/pkg/errorhandler"
	"github.com/banana-studio/banana-api/internal/pkg/response"
	"github.com/banana-studio/banana-api/internal/pkg/validator"
)

// Handler handles credit HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates credit handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetUserCredits handles GET /get-user-credits
func (h *Handler) GetUserCredits(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.GetBalance(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		WriteError(w, r, err, "get user credits")
		return
	}
	response.OK(w, balance)
}

// UpdateUserCredits handles POST /update-user-credits (self deduction)
func (h *Handler) UpdateUserCredits(w http.ResponseWriter, r *http.Request) {
	var req SpendRequest
	if !decode(w, r, &req) {
		return
	}

	userID := middleware.GetUserID(r.Context())
	result, err := h.service.Spend(r.Context(), userID, &req)
	if err != nil {
		WriteError(w, r, err, "update user credits")
		return
	}

	response.OK(w, SpendResponse{
		Success:          true,
		UserID:           userID,
		DeductedCredits:  req.CreditsToDeduct,
		RemainingCredits: result.Balance.RemainingCredits,
		Reason:           result.Transaction.Reason,
		Transaction:      result.Transaction,
		Replayed:         result.Replayed,
		TransactionTime:  result.Transaction.CreatedAt,
	})
}

// GetCreditTransactions handles GET /get-credit-transactions
func (h *Handler) GetCreditTransactions(w http.ResponseWriter, r *http.Request) {
	limit, offset := response.ParsePage(r)
	q := r.URL.Query()

	var target *uuid.UUID
	if raw := q.Get("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(w, "Invalid user_id")
			return
		}
		target = &id
	}

	items, total, err := h.service.ListTransactions(r.Context(), middleware.GetUserID(r.Context()), target, TxType(q.Get("transaction_type")), limit, offset)
	if err != nil {
		WriteError(w, r, err, "get credit transactions")
		return
	}
	response.WithMeta(w, items, response.NewMeta(limit, offset, total))
}

// CreateCreditTransaction handles POST /create-credit-transaction
func (h *Handler) CreateCreditTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.service.CreateTransaction(r.Context(), middleware.GetUserID(r.Context()), &req)
	if err != nil {
		WriteError(w, r, err, "create credit transaction")
		return
	}
	response.Created(w, result)
}

// AddCreditsForUser handles POST /add-credits-for-user
func (h *Handler) AddCreditsForUser(w http.ResponseWriter, r *http.Request) {
	var req AddCreditsRequest
	if !decode(w, r, &req) {
		return
	}

	grant, _ := admin.GrantFromContext(r.Context())
	result, err := h.service.AddCreditsForUser(r.Context(), grant, &req)
	if err != nil {
		WriteError(w, r, err, "add credits for user")
		return
	}

	response.OK(w, AddCreditsResponse{
		Success:          true,
		TargetUserID:     req.TargetUserID,
		AddedCredits:     req.CreditsAmount,
		TotalCredits:     result.Balance.TotalCredits,
		RemainingCredits: result.Balance.RemainingCredits,
		Reason:           result.Transaction.Reason,
		Transaction:      result.Transaction,
	})
}

// DailyCheckIn handles POST /daily-check-in
func (h *Handler) DailyCheckIn(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.CheckIn(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		WriteError(w, r, err, "daily check-in")
		return
	}
	response.OK(w, result)
}

// UsersWithCredits handles GET /admin-get-users-with-credits
func (h *Handler) UsersWithCredits(w http.ResponseWriter, r *http.Request) {
	limit, offset := response.ParsePage(r)
	q := r.URL.Query()

	filter := UserFilter{Search: q.Get("search"), Limit: limit, Offset: offset}
	var err error
	if filter.MinCredits, err = optionalInt(q.Get("min_credits")); err != nil {
		response.BadRequest(w, "Invalid min_credits")
		return
	}
	if filter.MaxCredits, err = optionalInt(q.Get("max_credits")); err != nil {
		response.BadRequest(w, "Invalid max_credits")
		return
	}

	result, err := h.service.UsersWithCredits(r.Context(), filter)
	if err != nil {
		WriteError(w, r, err, "users with credits")
		return
	}
	response.OK(w, result)
}

// TransactionsWithUsers handles GET /admin-get-transactions-with-users
func (h *Handler) TransactionsWithUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := response.ParsePage(r)
	q := r.URL.Query()

	filter := SearchFilter{
		Type:       TxType(q.Get("transaction_type")),
		UserSearch: q.Get("user_search"),
		Limit:      limit,
		Offset:     offset,
	}
	var err error
	if filter.DateFrom, err = ParseDate(q.Get("date_from"), false); err != nil {
		response.BadRequest(w, "Invalid date_from")
		return
	}
	if filter.DateTo, err = ParseDate(q.Get("date_to"), true); err != nil {
		response.BadRequest(w, "Invalid date_to")
		return
	}

	result, err := h.service.TransactionsWithUsers(r.Context(), filter)
	if err != nil {
		WriteError(w, r, err, "transactions with users")
		return
	}
	response.OK(w, result)
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

// ParseDate accepts RFC 3339 timestamps or YYYY-MM-DD dates. A bare date
// used as an upper bound covers the whole day.
func ParseDate(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// WriteError maps ledger errors to the error envelope.
func WriteError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	var insufficient *InsufficientCreditsError
	switch {
	case errors.As(err, &insufficient):
		response.ErrorWithDetails(w, http.StatusBadRequest, "INSUFFICIENT_CREDITS", "Insufficient credits", map[string]int64{
			"current_credits":  insufficient.Current,
			"required_credits": insufficient.Required,
		})
	case errors.Is(err, ErrInsufficientCredits):
		response.Error(w, http.StatusBadRequest, "INSUFFICIENT_CREDITS", "Insufficient credits")
	case errors.Is(err, ErrUserNotFound):
		response.NotFound(w, "User not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "Administrator privilege required")
	case errors.Is(err, ErrReferenceConflict):
		response.Error(w, http.StatusBadRequest, "REFERENCE_CONFLICT", err.Error())
	case errors.Is(err, ErrBalanceMismatch):
		response.Error(w, http.StatusBadRequest, "BALANCE_MISMATCH", err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrReasonRequired),
		errors.Is(err, ErrInvalidType), errors.Is(err, ErrCheckInDisabled):
		response.BadRequest(w, err.Error())
	default:
		errorhandler.Internal(r.Context(), w, err, operation)
	}
}
