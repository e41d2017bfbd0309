package shared

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"sptnr-core/shared/apperr"
)

func ErrorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.ErrorContext(r.Context(), "panic recovered", "panic", rec)
				http.Error(w, `{"code": 500, "message": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// RenderError maps an apperr sentinel to an HTTP status and writes a JSON
// body, for the thin read-only status API of spec.md §8.
func RenderError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, apperr.ErrConfig):
		statusCode = http.StatusInternalServerError
		message = "configuration error"
	case errors.Is(err, apperr.ErrRateLimit):
		statusCode = http.StatusTooManyRequests
		message = "rate limit exceeded"
	case errors.Is(err, apperr.ErrConnectivity), errors.Is(err, apperr.ErrAPI):
		statusCode = http.StatusBadGateway
		message = "upstream error"
	case errors.Is(err, apperr.ErrStore):
		statusCode = http.StatusInternalServerError
		message = "store error"
	case errors.Is(err, apperr.ErrBug):
		statusCode = http.StatusInternalServerError
		message = "internal error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    statusCode,
		"message": message,
	})

	slog.ErrorContext(r.Context(), "request error", "error", err, "status", statusCode)
}
