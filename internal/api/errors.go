package api

import "net/http"

// Error codes surfaced to clients in the errorCode field.
const (
	CodeBadRequest     = "BAD_REQUEST"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeValidation     = "VALIDATION_ERROR"
	CodeDuplicateKey   = "DUPLICATE_KEY"
	CodeInternal       = "INTERNAL_ERROR"
	CodeInternalServer = "INTERNAL_SERVER_ERROR"
)

// AppError is the domain error type carried across the service boundary.
// Callers above the service layer only ever see this type (or validation
// errors); raw storage-driver errors never escape.
type AppError struct {
	Message    string
	Code       string
	StatusCode int
	Details    map[string]any
}

func (e *AppError) Error() string {
	return e.Message
}

// NewAppError builds a generic AppError. Most call sites should prefer the
// kind-specific factories below.
func NewAppError(message, code string, statusCode int, details map[string]any) *AppError {
	if details == nil {
		details = map[string]any{}
	}
	return &AppError{
		Message:    message,
		Code:       code,
		StatusCode: statusCode,
		Details:    details,
	}
}

func BadRequest(message string, details map[string]any) *AppError {
	return NewAppError(message, CodeBadRequest, http.StatusBadRequest, details)
}

func NotFound(message string, details map[string]any) *AppError {
	return NewAppError(message, CodeNotFound, http.StatusNotFound, details)
}

func Conflict(message string, details map[string]any) *AppError {
	return NewAppError(message, CodeConflict, http.StatusConflict, details)
}

func Internal(message string, details map[string]any) *AppError {
	return NewAppError(message, CodeInternal, http.StatusInternalServerError, details)
}
