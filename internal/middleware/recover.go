package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/banana-studio/banana-api/internal/pkg/logger"
	"github.com/banana-studio/banana-api/internal/pkg/response"
)

// Recover turns a handler panic into the generic 500 envelope. Aborted
// handlers (http.ErrAbortHandler) are re-raised so net/http drops the
// connection quietly.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			logger.FromContext(r.Context()).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("user_id", GetUserID(r.Context()).String()).
				Msg("Panic recovered")

			response.InternalError(w)
		}()

		next.ServeHTTP(w, r)
	})
}
