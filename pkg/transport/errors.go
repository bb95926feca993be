package transport

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
)

// HTTPError is an error carrying the status the boundary should respond
// with. Handlers return it for expected failures (not found, forbidden).
type HTTPError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

// NewHTTPError creates an HTTPError. An empty message defaults to the
// status text.
func NewHTTPError(status int, message string) *HTTPError {
	if message == "" {
		message = http.StatusText(status)
	}
	return &HTTPError{Status: status, Message: message}
}

// PanicError is produced when a handler panics. It keeps the stack of the
// panicking goroutine.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// StackTrace returns the captured stack.
func (e *PanicError) StackTrace() string { return string(e.Stack) }

// Unwrap exposes a panicked error value.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// stackTracer is implemented by errors that carry their own stack.
type stackTracer interface {
	StackTrace() string
}

// HTTPStatusFromError maps an error to the status the boundary responds
// with. Anything that is not an HTTPError is a dispatch failure (500).
func HTTPStatusFromError(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && ValidStatus(httpErr.Status) {
		return httpErr.Status
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// ErrorResponse converts err into a response. HTTPErrors become their
// status and message, an oversized request body becomes 413. Everything else becomes a 500 whose body is the
// error message followed by a stack trace. The trace is the one carried
// by the error when available, otherwise the current stack.
func ErrorResponse(err error) *Response {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && ValidStatus(httpErr.Status) {
		return TextResponse(httpErr.Status, httpErr.Message)
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return TextResponse(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body too large (max %d bytes)", maxBytesErr.Limit))
	}

	var b strings.Builder
	b.WriteString(err.Error())
	b.WriteString("\n\n")
	var st stackTracer
	if errors.As(err, &st) {
		b.WriteString(st.StackTrace())
	} else {
		b.Write(debug.Stack())
	}
	return TextResponse(http.StatusInternalServerError, b.String())
}
