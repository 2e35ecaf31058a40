package auth

import (
	"errors"
	"net/http"

	"github.com/banana-studio/banana-api/internal/middleware"
	"github.com/banana-studio/banana-api/internal/pkg/errorhandler"
	"github.com/banana-studio/banana-api/internal/pkg/response"
	"github.com/banana-studio/banana-api/internal/pkg/validator"
)

// Handler handles auth HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates auth handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// SendVerificationCode handles POST /send-verification-code
func (h *Handler) SendVerificationCode(w http.ResponseWriter, r *http.Request) {
	var req SendCodeRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.service.SendCode(r.Context(), &req)
	if err != nil {
		writeError(w, r, err, "send verification code")
		return
	}
	response.OK(w, result)
}

// RegisterWithCode handles POST /register-with-code
func (h *Handler) RegisterWithCode(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.service.Register(r.Context(), &req)
	if err != nil {
		writeError(w, r, err, "register with code")
		return
	}
	response.Created(w, result)
}

// Login handles POST /login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), &req)
	if err != nil {
		writeError(w, r, err, "login")
		return
	}
	response.OK(w, result)
}

// Refresh handles POST /refresh-token
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, err, "refresh token")
		return
	}
	response.OK(w, result)
}

// Logout handles POST /logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
		writeError(w, r, err, "logout")
		return
	}
	response.OK(w, map[string]bool{"success": true})
}

// Me handles GET /me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GetCurrentUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err, "get current user")
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

func writeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, ErrEmailAlreadyExists):
		response.Error(w, http.StatusBadRequest, "EMAIL_EXISTS", "Email already registered")
	case errors.Is(err, ErrCooldown):
		response.TooManyRequests(w, ErrCooldown.Error())
	case errors.Is(err, ErrInvalidCode):
		response.Error(w, http.StatusBadRequest, "INVALID_CODE", ErrInvalidCode.Error())
	case errors.Is(err, ErrCodeExpired):
		response.Error(w, http.StatusBadRequest, "CODE_EXPIRED", ErrCodeExpired.Error())
	case errors.Is(err, ErrTooManyGuesses):
		response.Error(w, http.StatusBadRequest, "TOO_MANY_ATTEMPTS", ErrTooManyGuesses.Error())
	case errors.Is(err, ErrInvalidCredentials):
		response.Unauthorized(w, "Invalid email or password")
	case errors.Is(err, ErrInvalidRefreshToken), errors.Is(err, ErrRefreshTokenRequired):
		response.Unauthorized(w, "Invalid or expired refresh token")
	case errors.Is(err, ErrUserNotFound):
		response.NotFound(w, "User not found")
	case errors.Is(err, ErrEmailDelivery):
		response.Error(w, http.StatusInternalServerError, "EMAIL_DELIVERY_FAILED", "Failed to send verification email")
	default:
		errorhandler.Internal(r.Context(), w, err, op)
	}
}
