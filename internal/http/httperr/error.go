package httperr

import (
	"context"
	"encoding/json"
	"net/http"

	"timberline-crm/internal/observability/logger"
	"timberline-crm/internal/observability/requestid"

	"go.uber.org/zap"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	OK    bool         `json:"ok"`
	Error *ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	ErrorID string            `json:"error_id,omitempty"`
}

// Error codes for 401 Unauthorized
const (
	ErrCodeMissingSession = "MISSING_SESSION"
	ErrCodeInvalidSession = "INVALID_SESSION"
	ErrCodeSessionExpired = "SESSION_EXPIRED"
)

// Error codes for 400 Bad Request
const (
	ErrCodeInvalidParameter = "INVALID_PARAMETER"
	ErrCodeInvalidFormat    = "INVALID_FORMAT"
	ErrCodeMissingParameter = "MISSING_PARAMETER"
	ErrCodeValidationError  = "VALIDATION_ERROR"
	ErrCodeInvalidStatus    = "INVALID_STATUS"
	ErrCodeInvalidType      = "INVALID_TYPE"
)

// Error codes for 404 and 409
const (
	ErrCodeNotFound = "NOT_FOUND"
	ErrCodeConflict = "CONFLICT"
)

// Error codes for 5xx
const (
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
	ErrCodeRateLimited      = "RATE_LIMITED"
)

// WriteError writes a standardized error response
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	log := logger.GetLogger(ctx)
	reqID := requestid.GetRequestID(ctx)

	log.Error(ctx, "request failed",
		zap.Int("status_code", status),
		zap.String("error_code", code),
		zap.String("message", message),
		zap.String("request_id", reqID),
	)

	response := ErrorResponse{
		OK: false,
		Error: &ErrorDetail{
			Code:    code,
			Message: message,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// WriteErrorWithFields writes a standardized error response with field-level details
func WriteErrorWithFields(w http.ResponseWriter, ctx context.Context, status int, code, message string, fields map[string]string) {
	log := logger.GetLogger(ctx)

	fieldPairs := make([]zap.Field, 0, len(fields)+3)
	fieldPairs = append(fieldPairs,
		zap.Int("status_code", status),
		zap.String("error_code", code),
		zap.String("message", message),
	)
	for k, v := range fields {
		fieldPairs = append(fieldPairs, zap.String("field_"+k, v))
	}

	log.Error(ctx, "request failed with field errors", fieldPairs...)

	response := ErrorResponse{
		OK: false,
		Error: &ErrorDetail{
			Code:    code,
			Message: message,
			Fields:  fields,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// Unauthorized401 writes a 401 Unauthorized response
func Unauthorized401(w http.ResponseWriter, ctx context.Context, code, message string) {
	WriteError(w, ctx, http.StatusUnauthorized, code, message)
}

// BadRequest400 writes a 400 Bad Request response
func BadRequest400(w http.ResponseWriter, ctx context.Context, code, message string) {
	WriteError(w, ctx, http.StatusBadRequest, code, message)
}

// BadRequest400WithFields writes a 400 Bad Request response with field-level errors
func BadRequest400WithFields(w http.ResponseWriter, ctx context.Context, code, message string, fields map[string]string) {
	WriteErrorWithFields(w, ctx, http.StatusBadRequest, code, message, fields)
}

// NotFound404 writes a 404 Not Found response
func NotFound404(w http.ResponseWriter, ctx context.Context, message string) {
	WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, message)
}

// Conflict409 writes a 409 Conflict response
func Conflict409(w http.ResponseWriter, ctx context.Context, message string) {
	WriteError(w, ctx, http.StatusConflict, ErrCodeConflict, message)
}

// BadGateway502 reports a reachable server whose backing store is not.
func BadGateway502(w http.ResponseWriter, ctx context.Context, message string) {
	WriteError(w, ctx, http.StatusBadGateway, ErrCodeStoreUnavailable, message)
}

// TooManyRequests429 writes a 429 response
func TooManyRequests429(w http.ResponseWriter, ctx context.Context, message string) {
	WriteError(w, ctx, http.StatusTooManyRequests, ErrCodeRateLimited, message)
}

// InternalError500 writes a 500 Internal Server Error response
func InternalError500(w http.ResponseWriter, ctx context.Context, message string) {
	reqID := requestid.GetRequestID(ctx)

	log := logger.GetLogger(ctx)
	log.Error(ctx, "internal server error",
		zap.String("message", message),
		zap.String("request_id", reqID),
	)

	// The generic message goes out; the real error stays in the logs.
	response := ErrorResponse{
		OK: false,
		Error: &ErrorDetail{
			Code:    ErrCodeInternalError,
			Message: "Internal Server Error",
			ErrorID: reqID,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(response)
}

// InternalError is an alias for InternalError500
func InternalError(w http.ResponseWriter, ctx context.Context) {
	InternalError500(w, ctx, "internal server error")
}
