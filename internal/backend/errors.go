package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport wraps failures that happened before a response arrived.
	ErrTransport = errors.New("backend unreachable")
	// ErrMalformedResponse is returned when a 2xx body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed backend response")
)

// APIError is a non-2xx backend response.
type APIError struct {
	Status  int
	Message string
	// Field optionally names the form field the backend blamed.
	Field string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// AsAPIError unwraps err into an *APIError when possible.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// MessageOr returns the backend-supplied message for err, or fallback when
// err is not an APIError or carries no message.
func MessageOr(err error, fallback string) string {
	if apiErr, ok := AsAPIError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
