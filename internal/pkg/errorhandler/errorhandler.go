package errorhandler

import (
	"context"
	"net/http"

	"github.com/banana-studio/banana-api/internal/pkg/logger"
	"github.com/banana-studio/banana-api/internal/pkg/response"
)

// HandleError logs err with the request id and sends an error envelope.
func HandleError(ctx context.Context, w http.ResponseWriter, status int, code, message string, err error) {
	event := logger.FromContext(ctx).Error().
		Str("request_id", logger.RequestID(ctx)).
		Str("error_code", code).
		Int("status_code", status)
	if err != nil {
		event = event.Err(err)
	}
	event.Msg(message)

	response.Error(w, status, code, message)
}

// Internal logs err and answers the generic 500 envelope. The cause never
// reaches the client.
func Internal(ctx context.Context, w http.ResponseWriter, err error, operation string) {
	logger.FromContext(ctx).Error().
		Str("request_id", logger.RequestID(ctx)).
		Str("operation", operation).
		Err(err).
		Msg("request failed")

	response.InternalError(w)
}

// LogValidationError logs validation errors with details
func LogValidationError(ctx context.Context, fieldErrors map[string]string) {
	logger.FromContext(ctx).Warn().
		Str("request_id", logger.RequestID(ctx)).
		Interface("validation_errors", fieldErrors).
		Msg("Validation error")
}

// LogExternalServiceError logs errors from external service calls
func LogExternalServiceError(ctx context.Context, service string, endpoint string, statusCode int, err error, body string) {
	logger.FromContext(ctx).Error().
		Str("request_id", logger.RequestID(ctx)).
		Str("external_service", service).
		Str("endpoint", endpoint).
		Int("status_code", statusCode).
		Err(err).
		Str("response_body", truncateString(body, 1000)).
		Msg("External service error")
}

func truncateString(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "...<truncated>"
	}
	return s
}
