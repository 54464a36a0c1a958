package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents an Atlas error code.
type ErrorCode string

const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"     // 400
	ErrNotFound           ErrorCode = "NOT_FOUND"           // 404
	ErrFileNotFound       ErrorCode = "FILE_NOT_FOUND"      // 404
	ErrImportFailed       ErrorCode = "IMPORT_FAILED"       // 422
	ErrCancelled          ErrorCode = "CANCELLED"           // 499
	ErrQuotaExceeded      ErrorCode = "QUOTA_EXCEEDED"      // 507
	ErrStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE" // 503
	ErrInternal           ErrorCode = "INTERNAL"            // 500
)

// AtlasError represents a structured error with code, status, and details.
type AtlasError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	cause   error
}

// Error implements the error interface.
func (e *AtlasError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *AtlasError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *AtlasError {
	return &AtlasError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a memory or group cannot be found.
func NewNotFound(kind, id string) *AtlasError {
	return &AtlasError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, id),
		Details: map[string]any{"kind": kind, "id": id},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *AtlasError {
	return &AtlasError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewImportFailed creates a 422 error when an import file cannot be parsed at all.
func NewImportFailed(format string, err error) *AtlasError {
	msg := "invalid " + format + " file"
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &AtlasError{
		Code:    ErrImportFailed,
		Status:  422,
		Message: msg,
		Details: map[string]any{"format": format},
		cause:   err,
	}
}

// NewCancelled creates an error for an operation stopped by its context.
func NewCancelled(op string) *AtlasError {
	return &AtlasError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewQuotaExceeded creates a 507 error when a store has no room for a value.
func NewQuotaExceeded(capacity, size int) *AtlasError {
	return &AtlasError{
		Code:    ErrQuotaExceeded,
		Status:  507,
		Message: fmt.Sprintf("storage quota exceeded: %d bytes (capacity %d)", size, capacity),
		Details: map[string]any{"capacity_bytes": capacity, "size_bytes": size},
	}
}

// NewStorageUnavailable creates a 503 error wrapping a backend failure.
func NewStorageUnavailable(err error) *AtlasError {
	msg := "storage unavailable"
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &AtlasError{
		Code:    ErrStorageUnavailable,
		Status:  503,
		Message: msg,
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *AtlasError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &AtlasError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if err (or anything it wraps) is an AtlasError with the given code.
func Is(err error, code ErrorCode) bool {
	var aErr *AtlasError
	if stderrors.As(err, &aErr) {
		return aErr.Code == code
	}
	return false
}
