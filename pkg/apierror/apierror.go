// Package apierror writes uniform JSON error bodies for the scan API.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kaliumosint/api/pkg/domain/scan"
	"github.com/kaliumosint/api/pkg/domain/shared"
)

// Code represents an error code.
type Code string

const (
	CodeBadRequest         Code = "BAD_REQUEST"
	CodeInvalidRequest     Code = "INVALID_REQUEST"
	CodeNotFound           Code = "NOT_FOUND"
	CodeMethodNotAllowed   Code = "METHOD_NOT_ALLOWED"
	CodePayloadTooLarge    Code = "PAYLOAD_TOO_LARGE"
	CodeInternalError      Code = "INTERNAL_ERROR"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeValidationFailed   Code = "VALIDATION_FAILED"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"
	CodeTimeout            Code = "TIMEOUT"
)

// Error represents a standardized API error.
type Error struct {
	Status  int    `json:"-"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	// Err is logged, never sent.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Response represents the error response structure.
type Response struct {
	Error     string `json:"error"`
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ToResponse converts the error to a response structure.
func (e *Error) ToResponse(requestID string) Response {
	return Response{
		Error:     string(e.Code),
		Code:      e.Code,
		Message:   e.Message,
		Details:   e.Details,
		RequestID: requestID,
	}
}

// WriteJSON writes the error as JSON to the response writer.
func (e *Error) WriteJSON(w http.ResponseWriter) {
	e.WriteJSONWithRequestID(w, "")
}

// WriteJSONWithRequestID writes the error as JSON with request ID.
func (e *Error) WriteJSONWithRequestID(w http.ResponseWriter, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(e.ToResponse(requestID))
}

// New creates a new API error.
func New(status int, code Code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// WithDetails adds details to the error.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// WithError adds an internal error.
func (e *Error) WithError(err error) *Error {
	e.Err = err
	return e
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, CodeBadRequest, message)
}

// NotFound creates a 404 Not Found error.
func NotFound(resource string) *Error {
	message := "Resource not found"
	if resource != "" {
		message = resource + " not found"
	}
	return New(http.StatusNotFound, CodeNotFound, message)
}

// MethodNotAllowed creates a 405 error.
func MethodNotAllowed() *Error {
	return New(http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Method not allowed")
}

// PayloadTooLarge creates a 413 error.
func PayloadTooLarge() *Error {
	return New(http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "Request body too large")
}

// ValidationFailed creates a 422 error with per-field details.
func ValidationFailed(message string, details any) *Error {
	return New(http.StatusUnprocessableEntity, CodeValidationFailed, message).WithDetails(details)
}

// InternalError creates a 500 error that hides err from the client.
func InternalError(err error) *Error {
	return New(http.StatusInternalServerError, CodeInternalError, "An internal error occurred").WithError(err)
}

// ServiceUnavailable creates a 503 Service Unavailable error.
func ServiceUnavailable(message string) *Error {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	return New(http.StatusServiceUnavailable, CodeServiceUnavailable, message)
}

// RateLimitExceeded creates a 429 Too Many Requests error.
func RateLimitExceeded() *Error {
	return New(http.StatusTooManyRequests, CodeRateLimitExceeded, "Rate limit exceeded")
}

// Timeout creates a 504 error.
func Timeout() *Error {
	return New(http.StatusGatewayTimeout, CodeTimeout, "Request timed out")
}

// ValidationError represents a field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Add adds a validation error.
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are validation errors.
func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// ToAPIError converts validation errors to an API error.
func (v ValidationErrors) ToAPIError() *Error {
	return ValidationFailed("Validation failed", v)
}

// FromError maps domain and scan errors to API errors. Unknown errors
// become internal errors.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, scan.ErrInvalidRequest):
		e := New(http.StatusBadRequest, CodeInvalidRequest, "Invalid scan request").WithError(err)
		var de *shared.DomainError
		if errors.As(err, &de) {
			e.Message = de.Message
			if de.Field != "" {
				e.Details = ValidationErrors{{Field: de.Field, Message: de.Message}}
			}
		}
		return e
	case errors.Is(err, scan.ErrSinkUnavailable):
		return ServiceUnavailable("Progress stream unavailable").WithError(err)
	case errors.Is(err, scan.ErrRunCanceled):
		return ServiceUnavailable("Scan canceled").WithError(err)
	case shared.IsValidation(err):
		return BadRequest("Invalid request").WithError(err)
	default:
		return InternalError(err)
	}
}
