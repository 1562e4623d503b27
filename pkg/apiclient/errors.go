package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidBaseURL   = errors.New("apiclient: invalid base URL")
	ErrEncodeRequest    = errors.New("apiclient: failed to encode request body")
	ErrDecodeResponse   = errors.New("apiclient: failed to decode response body")
	ErrToken            = errors.New("apiclient: failed to obtain access token")
	ErrUnexpectedStatus = errors.New("apiclient: unexpected response status")
	ErrCircuitOpen      = errors.New("apiclient: upstream circuit open")
)

// StatusError is returned for any non-2xx response. It matches ErrUnexpectedStatus.
type StatusError struct {
	Method     string
	URL        string
	Body       []byte
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("apiclient: %s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}
