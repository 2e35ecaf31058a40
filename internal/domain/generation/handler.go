package generation

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/banana-studio/banana-api/internal/domain/credit"
	"github.com/banana-studio/banana-api/internal/middleware"
	"github.com/banana-studio/banana-api/internal/pkg/errorhandler"
	"github.com/banana-studio/banana-api/internal/pkg/response"
	"github.com/banana-studio/banana-api/internal/pkg/storage"
	"github.com/banana-studio/banana-api/internal/pkg/validator"
)

const maxInputBytes = 10 << 20

// Handler handles generation HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates generation handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Create handles POST /create-generation. It accepts JSON with input_url or
// a multipart form with an "image" file.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var (
		req   CreateRequest
		image io.Reader
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxInputBytes)
		if err := r.ParseMultipartForm(maxInputBytes); err != nil {
			response.BadRequest(w, "Invalid multipart form")
			return
		}
		req = CreateRequest{
			Feature:  Feature(r.FormValue("feature")),
			Prompt:   r.FormValue("prompt"),
			InputURL: r.FormValue("input_url"),
		}
		if file, _, err := r.FormFile("image"); err == nil {
			defer file.Close()
			image = file
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

	result, err := h.service.Create(r.Context(), middleware.GetUserID(r.Context()), &req, image)
	if err != nil {
		writeError(w, r, err, "create generation")
		return
	}
	response.Created(w, result)
}

// List handles GET /get-generations
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := response.ParsePage(r)
	items, total, err := h.service.List(r.Context(), middleware.GetUserID(r.Context()), limit, offset)
	if err != nil {
		writeError(w, r, err, "list generations")
		return
	}
	response.WithMeta(w, items, response.NewMeta(limit, offset, total))
}

// Get handles GET /get-generation?id=
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		response.BadRequest(w, "Invalid generation id")
		return
	}
	g, err := h.service.Get(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		writeError(w, r, err, "get generation")
		return
	}
	response.OK(w, g)
}

func writeError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrInvalidFeature), errors.Is(err, ErrInputRequired), errors.Is(err, ErrPromptRequired):
		response.BadRequest(w, err.Error())
	case errors.Is(err, storage.ErrFileTooLarge), errors.Is(err, storage.ErrInvalidMimeType), errors.Is(err, storage.ErrEmptyFile):
		response.BadRequest(w, err.Error())
	default:
		credit.WriteError(w, r, err, operation)
	}
}
