package apierr

import (
	"errors"
	"net/http"
)

// Error is the typed failure every service operation returns. Handlers map
// it once at the HTTP boundary to a status code and the standard error
// envelope; no token material is ever placed in Message or Errors.
type Error struct {
	StatusCode int
	Message    string
	Errors     []string
}

func (e *Error) Error() string {
	return e.Message
}

// New builds an Error with an explicit status code.
func New(status int, message string, details ...string) *Error {
	return &Error{StatusCode: status, Message: message, Errors: details}
}

// Validation reports missing or malformed input (400).
func Validation(message string, details ...string) *Error {
	return New(http.StatusBadRequest, message, details...)
}

// Conflict reports a duplicate unique key (409).
func Conflict(message string) *Error {
	return New(http.StatusConflict, message)
}

// Unauthorized covers the auth failure family: missing token, invalid or
// expired token, invalid refresh token, bad credentials (401).
func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, message)
}

// NotFound reports an absent resource (404).
func NotFound(message string) *Error {
	return New(http.StatusNotFound, message)
}

// Upstream reports a failed call to a collaborator such as the media store
// (502). The wrapped cause stays server-side.
func Upstream(message string) *Error {
	return New(http.StatusBadGateway, message)
}

// Internal is the generic 500. Callers log the cause; clients only see the
// message.
func Internal() *Error {
	return New(http.StatusInternalServerError, "Something went wrong")
}

// From extracts a typed Error from err, falling back to Internal so that
// unexpected failures never leak detail to clients.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal()
}
