// Package middleware carries the HTTP middleware chain: request ids,
// panic recovery, and request logging.
package middleware

import (
	"fmt"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/MacromNex/rfdiffusion2-mcp/internal/errors"
)

// ErrorResponse aliases the standard error envelope so middleware tests can
// decode it without importing the errors package.
type ErrorResponse = apperrors.HTTPErrorResponse

// RequestID assigns a request id when the client did not send one. It is
// chi's middleware, re-exported so the chain is assembled in one place.
func RequestID(next http.Handler) http.Handler {
	return chimw.RequestID(next)
}

// Recovery converts panics into a 500 response with the standard envelope.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				apperrors.RespondWithError(w, r, http.StatusInternalServerError,
					apperrors.CodeInternal, fmt.Sprintf("panic: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs each request with method, path, status, and duration.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimw.GetReqID(r.Context())),
			)
		})
	}
}
