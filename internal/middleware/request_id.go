package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/banana-studio/banana-api/internal/pkg/logger"
)

// RequestID adds a unique request ID to each request and a request-scoped
// logger to its context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)

		l := log.Logger.With().Str("request_id", requestID).Logger()
		ctx := logger.WithContext(r.Context(), &l)
		ctx = logger.WithRequestID(ctx, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
