package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/ihsan/pkg/cache"
)

// Sentinel errors for admin requests. Both are reported as 400.
var (
	// ErrInvalidKey is returned when the key path segment is empty or malformed.
	ErrInvalidKey = errors.New("server: invalid cache key")

	// ErrInvalidBody is returned when a request body cannot be decoded.
	ErrInvalidBody = errors.New("server: invalid request body")
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps an error to the HTTP status it is reported with.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidKey),
		errors.Is(err, ErrInvalidBody),
		errors.Is(err, cache.ErrInvalidPattern),
		errors.Is(err, cache.ErrUnknownStrategy):
		return http.StatusBadRequest
	case errors.Is(err, cache.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, cache.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "admin request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}
