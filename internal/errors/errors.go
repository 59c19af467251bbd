package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error.
type ErrorType string

const (
	// Control API errors
	ErrorTypeValidation  ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound    ErrorType = "NOT_FOUND"
	ErrorTypeInternal    ErrorType = "INTERNAL_ERROR"
	ErrorTypeServiceDown ErrorType = "SERVICE_DOWN"

	// Decode pipeline errors
	ErrorTypeNegotiation       ErrorType = "NEGOTIATION_FAILED"
	ErrorTypeResourceExhausted ErrorType = "RESOURCE_EXHAUSTED"
	ErrorTypeDecode            ErrorType = "DECODE_FAILED"
	ErrorTypeProtocol          ErrorType = "PROTOCOL_VIOLATION"
	ErrorTypeConstruction      ErrorType = "CONSTRUCTION_FAILED"
	ErrorTypeSink              ErrorType = "SINK_FAILED"
)

// AppError represents an application error with additional context.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCode adds an error code.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// New creates a new AppError.
func New(errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an existing error.
func Wrap(err error, errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message, http.StatusBadRequest)
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(resource string) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// NewInternalError creates an internal server error.
func NewInternalError(message string) *AppError {
	return New(ErrorTypeInternal, message, http.StatusInternalServerError)
}

// WrapInternalError wraps an error as internal server error.
func WrapInternalError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeInternal, message, http.StatusInternalServerError)
}

// NewServiceDownError creates a service down error.
func NewServiceDownError(service string) *AppError {
	return New(ErrorTypeServiceDown, fmt.Sprintf("%s service is currently unavailable", service), http.StatusServiceUnavailable)
}

// NewNegotiationError reports that no acceptable output format exists for a stream.
func NewNegotiationError(message string) *AppError {
	return New(ErrorTypeNegotiation, message, http.StatusUnprocessableEntity)
}

// NewResourceExhaustedError reports a hard capacity limit being reached.
func NewResourceExhaustedError(message string) *AppError {
	return New(ErrorTypeResourceExhausted, message, http.StatusInsufficientStorage)
}

// WrapDecodeError wraps a per-frame decode failure.
func WrapDecodeError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeDecode, message, http.StatusUnprocessableEntity)
}

// NewProtocolError reports a caller breaking the frame handoff protocol.
func NewProtocolError(message string) *AppError {
	return New(ErrorTypeProtocol, message, http.StatusConflict)
}

// WrapConstructionError wraps a failure while building a pipeline component.
func WrapConstructionError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeConstruction, message, http.StatusInternalServerError)
}

// WrapSinkError wraps a failure reported by the sink.
func WrapSinkError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeSink, message, http.StatusBadGateway)
}

// IsAppError checks if an error is, or wraps, an AppError.
func IsAppError(err error) bool {
	_, ok := GetAppError(err)
	return ok
}

// GetAppError extracts AppError from an error chain.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Type == errType
}

// TypeOf returns the error type label used in logs and metrics.
func TypeOf(err error) string {
	if appErr, ok := GetAppError(err); ok {
		return string(appErr.Type)
	}
	return "unknown"
}
