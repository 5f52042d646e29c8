package adapters

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/strongdm/sentinel-catcher/pkg/sentinel/hook"
)

// StatusError is implemented by errors that map to an HTTP status.
type StatusError interface {
	error
	StatusCode() int
}

// HTTPError pairs an error with the status a handler should respond with.
type HTTPError struct {
	Code int
	Err  error
}

// NewHTTPError wraps err with status code.
func NewHTTPError(code int, err error) *HTTPError {
	return &HTTPError{Code: code, Err: err}
}

// Errorf formats an HTTPError with status code.
func Errorf(code int, format string, args ...any) *HTTPError {
	return &HTTPError{Code: code, Err: fmt.Errorf(format, args...)}
}

func (e *HTTPError) Error() string {
	if e.Err == nil {
		return http.StatusText(e.Code)
	}
	return e.Err.Error()
}

func (e *HTTPError) Unwrap() error { return e.Err }

// StatusCode implements StatusError.
func (e *HTTPError) StatusCode() int { return e.Code }

// StatusOf returns the status err maps to, or 500.
func StatusOf(err error) int {
	var se StatusError
	if errors.As(err, &se) {
		if code := se.StatusCode(); code >= 100 && code <= 999 {
			return code
		}
	}
	return http.StatusInternalServerError
}

func asError(v any) error { return hook.AsError(v) }
