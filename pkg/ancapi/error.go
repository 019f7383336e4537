package ancapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// FallbackMessage is the error message used when a failed response carries
// no "error" field.
const FallbackMessage = "Request failed"

// Error is a backend-reported failure (non-2xx response).
type Error struct {
	// Message is the response body's "error" field, or FallbackMessage.
	Message string

	// HTTPStatus is the HTTP status code.
	HTTPStatus int

	// Body is the raw response body when it was valid JSON.
	Body json.RawMessage
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("ancapi: %s (http_status=%d)", e.Message, e.HTTPStatus)
}

// IsUnauthorized reports whether the API key was missing or rejected.
func (e *Error) IsUnauthorized() bool {
	return e.HTTPStatus == http.StatusUnauthorized || e.HTTPStatus == http.StatusForbidden
}

// IsNotFound reports whether the resource does not exist.
func (e *Error) IsNotFound() bool {
	return e.HTTPStatus == http.StatusNotFound
}

// IsServerError reports a 5xx response.
func (e *Error) IsServerError() bool {
	return e.HTTPStatus >= 500
}

// AsError extracts *Error from an error.
//
// Example:
//
//	if e, ok := ancapi.AsError(err); ok && e.IsUnauthorized() {
//	    // prompt for a new key
//	}
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// newError builds an *Error from a failed response body.
func newError(status int, body []byte) *Error {
	e := &Error{Message: FallbackMessage, HTTPStatus: status}
	var parsed struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		e.Body = json.RawMessage(body)
		if parsed.Error != "" {
			e.Message = parsed.Error
		}
	}
	return e
}
