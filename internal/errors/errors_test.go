package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("New creates error correctly", func(t *testing.T) {
		err := New(ErrorTypeValidation, "Invalid input", http.StatusBadRequest)

		assert.Equal(t, ErrorTypeValidation, err.Type)
		assert.Equal(t, "Invalid input", err.Message)
		assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)
		assert.Equal(t, "VALIDATION_ERROR: Invalid input", err.Error())
	})

	t.Run("Wrap wraps error correctly", func(t *testing.T) {
		originalErr := errors.New("codec open failed")
		err := Wrap(originalErr, ErrorTypeConstruction, "connector setup failed", http.StatusInternalServerError)

		assert.Equal(t, ErrorTypeConstruction, err.Type)
		assert.Equal(t, originalErr, err.Unwrap())
		assert.Contains(t, err.Error(), "codec open failed")
	})

	t.Run("WithDetails and WithCode", func(t *testing.T) {
		err := newDecodeError().WithDetails(map[string]interface{}{"stream": 2}).WithCode("DEC_001")
		assert.Equal(t, 2, err.Details["stream"])
		assert.Equal(t, "DEC_001", err.Code)
	})
}

func newDecodeError() *AppError {
	return WrapDecodeError(errors.New("no picture"), "frame dropped")
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name       string
		fn         func() *AppError
		wantType   ErrorType
		wantStatus int
	}{
		{"NewValidationError", func() *AppError { return NewValidationError("bad") }, ErrorTypeValidation, http.StatusBadRequest},
		{"NewNotFoundError", func() *AppError { return NewNotFoundError("session") }, ErrorTypeNotFound, http.StatusNotFound},
		{"NewInternalError", func() *AppError { return NewInternalError("boom") }, ErrorTypeInternal, http.StatusInternalServerError},
		{"NewServiceDownError", func() *AppError { return NewServiceDownError("redis") }, ErrorTypeServiceDown, http.StatusServiceUnavailable},
		{"NewNegotiationError", func() *AppError { return NewNegotiationError("no format") }, ErrorTypeNegotiation, http.StatusUnprocessableEntity},
		{"NewResourceExhaustedError", func() *AppError { return NewResourceExhaustedError("pool full") }, ErrorTypeResourceExhausted, http.StatusInsufficientStorage},
		{"NewProtocolError", func() *AppError { return NewProtocolError("busy") }, ErrorTypeProtocol, http.StatusConflict},
		{"WrapSinkError", func() *AppError { return WrapSinkError(errors.New("x"), "sink") }, ErrorTypeSink, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			assert.Equal(t, tt.wantType, err.Type)
			assert.Equal(t, tt.wantStatus, err.HTTPStatus)
			assert.NotEmpty(t, err.Message)
		})
	}
}

func TestGetAppErrorThroughWrapping(t *testing.T) {
	appErr := NewProtocolError("frame arrived while worker busy")
	wrapped := fmt.Errorf("stream 3: %w", appErr)

	got, ok := GetAppError(wrapped)
	assert.True(t, ok)
	assert.Same(t, appErr, got)
	assert.True(t, IsAppError(wrapped))
	assert.True(t, IsType(wrapped, ErrorTypeProtocol))
	assert.False(t, IsType(wrapped, ErrorTypeDecode))
	assert.Equal(t, "PROTOCOL_VIOLATION", TypeOf(wrapped))

	plain := errors.New("standard error")
	got, ok = GetAppError(plain)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.Equal(t, "unknown", TypeOf(plain))
}

func TestWrapInternalError(t *testing.T) {
	originalErr := errors.New("registry unreachable")
	wrappedErr := WrapInternalError(originalErr, "Failed to list sessions")

	assert.Equal(t, ErrorTypeInternal, wrappedErr.Type)
	assert.Equal(t, "Failed to list sessions", wrappedErr.Message)
	assert.Equal(t, http.StatusInternalServerError, wrappedErr.HTTPStatus)
	assert.Equal(t, originalErr, wrappedErr.Unwrap())
}
