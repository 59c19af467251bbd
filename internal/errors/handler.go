package errors

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/zsiec/ingex/internal/logger"
)

// ErrorResponse is the JSON body of every status API error.
type ErrorResponse struct {
	Error   ErrorDetails `json:"error"`
	TraceID string       `json:"trace_id,omitempty"`
}

type ErrorDetails struct {
	Type      ErrorType              `json:"type"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Retryable bool                   `json:"retryable,omitempty"`
}

// retryAfter is sent with errors that clear on their own, such as a decoder
// pool at its cap or Redis being briefly unreachable.
const retryAfter = "5"

// typeStatus is used when an AppError was built without an HTTP status.
var typeStatus = map[ErrorType]int{
	ErrorTypeValidation:        http.StatusBadRequest,
	ErrorTypeNotFound:          http.StatusNotFound,
	ErrorTypeInternal:          http.StatusInternalServerError,
	ErrorTypeServiceDown:       http.StatusServiceUnavailable,
	ErrorTypeNegotiation:       http.StatusUnprocessableEntity,
	ErrorTypeResourceExhausted: http.StatusInsufficientStorage,
	ErrorTypeDecode:            http.StatusUnprocessableEntity,
	ErrorTypeProtocol:          http.StatusConflict,
	ErrorTypeConstruction:      http.StatusInternalServerError,
	ErrorTypeSink:              http.StatusBadGateway,
}

// typeLevel is how loudly each error type is logged. Per-frame pipeline
// failures are expected in damaged essence and stay at warn.
var typeLevel = map[ErrorType]logrus.Level{
	ErrorTypeValidation:        logrus.InfoLevel,
	ErrorTypeNotFound:          logrus.InfoLevel,
	ErrorTypeNegotiation:       logrus.WarnLevel,
	ErrorTypeDecode:            logrus.WarnLevel,
	ErrorTypeProtocol:          logrus.WarnLevel,
	ErrorTypeResourceExhausted: logrus.WarnLevel,
	ErrorTypeServiceDown:       logrus.WarnLevel,
}

// Retryable reports whether a client may repeat the request unchanged.
func Retryable(t ErrorType) bool {
	return t == ErrorTypeServiceDown || t == ErrorTypeResourceExhausted
}

// StatusOf returns the HTTP status for an AppError.
func StatusOf(e *AppError) int {
	if e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	if status, ok := typeStatus[e.Type]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorHandler writes status API errors and logs them through the request's
// entry when RequestLoggerMiddleware installed one.
type ErrorHandler struct {
	logger *logrus.Logger
}

func NewErrorHandler(log *logrus.Logger) *ErrorHandler {
	if log == nil {
		log = logrus.New()
	}
	return &ErrorHandler{logger: log}
}

func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := GetAppError(err)
	if !ok {
		appErr = WrapInternalError(err, "An unexpected error occurred")
	}
	status := StatusOf(appErr)
	retryable := Retryable(appErr.Type)

	traceID := logger.RequestID(r.Context())
	if traceID == "" {
		traceID = r.Header.Get("X-Request-ID")
	}

	entry := logger.FromContext(r.Context(), h.logger)
	if _, scoped := entry.Data["request_id"]; !scoped {
		entry = entry.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path, "trace_id": traceID})
	}
	level, ok := typeLevel[appErr.Type]
	if !ok {
		level = logrus.ErrorLevel
	}
	entry.WithFields(logrus.Fields{
		"error_type": appErr.Type,
		"error_code": appErr.Code,
		"status":     status,
	}).Log(level, appErr.Error())

	if retryable {
		w.Header().Set("Retry-After", retryAfter)
	}
	h.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetails{
			Type:      appErr.Type,
			Message:   appErr.Message,
			Code:      appErr.Code,
			Details:   appErr.Details,
			Retryable: retryable,
		},
		TraceID: traceID,
	})
}

func (h *ErrorHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.HandleError(w, r, NewNotFoundError("endpoint").WithDetails(map[string]interface{}{"path": r.URL.Path}))
}

// HandleMethodNotAllowed answers writes to the read-only API.
func (h *ErrorHandler) HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "GET, OPTIONS")
	h.HandleError(w, r, New(ErrorTypeValidation, "Method not allowed", http.StatusMethodNotAllowed))
}

func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	logger.FromContext(r.Context(), h.logger).WithField("panic", recovered).Error("Panic recovered in HTTP handler")
	h.HandleError(w, r, NewInternalError("An unexpected error occurred"))
}

func (h *ErrorHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.WithError(err).Error("Failed to encode error response")
	}
}

// Middleware turns handler panics into 500 responses.
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				h.HandlePanic(w, r, recovered)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
