package domain

import "fmt"

// AppError is the base domain error type.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Status  int               `json:"-"`
	Cause   error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Standard domain error constructors.

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Message: msg, Status: 409}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: msg, Status: 400}
}

// ErrValidationFields reports per-field problems so clients can attach
// messages to the offending inputs.
func ErrValidationFields(fields map[string]string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: "validation failed", Fields: fields, Status: 400}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: msg, Status: 401}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Message: msg, Status: 403}
}

func ErrAccountLocked(msg string) *AppError {
	return &AppError{Code: "ACCOUNT_LOCKED", Message: msg, Status: 429}
}

func ErrRateLimited(msg string) *AppError {
	return &AppError{Code: "RATE_LIMITED", Message: msg, Status: 429}
}

// ErrConcurrency marks a lost race on a locked or concurrently deleted
// row. Callers roll back and either retry or degrade, never crash.
func ErrConcurrency(msg string) *AppError {
	return &AppError{Code: "CONCURRENCY", Message: msg, Status: 409}
}

// ErrExternalService wraps a failure of an upstream collaborator. The
// boundary never forwards the cause to clients.
func ErrExternalService(msg string, cause error) *AppError {
	return &AppError{Code: "EXTERNAL_SERVICE", Message: msg, Status: 502, Cause: cause}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: msg, Status: 500, Cause: cause}
}

// GuardResult is returned by request guards (rate limiter, lockout).
type GuardResult struct {
	Allowed bool
	Reason  string
	Guard   string
}
