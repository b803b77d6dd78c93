// Package apperrors provides the unified error type used across the backend.
//
// Services wrap driver-level errors into *apperrors.Error before returning
// them; controllers use the Is* predicates and the Kind to pick an HTTP
// status without importing driver packages.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind categorises an error without exposing subsystem-specific codes.
type Kind int

const (
	KindUnknown         Kind = iota
	KindValidation           // bad input shape or range
	KindConflict             // duplicate sibling name, duplicate key/token
	KindAccessDenied         // ownership or permission failure; never reveals existence
	KindNotFound             // owner-scoped missing resource, or collapsed share resolution
	KindStorageFailed        // object-store or database I/O failure
	KindConsistencyRisk      // paired stores diverged and rollback failed; needs operator attention
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAccessDenied:
		return "access_denied"
	case KindNotFound:
		return "not_found"
	case KindStorageFailed:
		return "storage_failed"
	case KindConsistencyRisk:
		return "consistency_risk"
	default:
		return "unknown"
	}
}

// Stable codes surfaced to API callers.
const (
	CodeFolderExists          = "FOLDER_EXISTS"
	CodeFolderNotFound        = "FOLDER_NOT_FOUND"
	CodeFileNotFound          = "FILE_NOT_FOUND"
	CodeShareNotFound         = "SHARE_NOT_FOUND"
	CodeDestinationNotFound   = "DESTINATION_NOT_FOUND"
	CodeAccessDenied          = "ACCESS_DENIED"
	CodeUnauthorizedRecipient = "UNAUTHORIZED_RECIPIENT"
	CodeInvalidExpiry         = "INVALID_EXPIRY"
	CodeInvalidInput          = "INVALID_INPUT"
	CodeStorageFailed         = "STORAGE_FAILED"
	CodeConsistencyRisk       = "CONSISTENCY_RISK"
	CodeTraversalLimit        = "TRAVERSAL_LIMIT"
)

// Error is the single error type returned by all services.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an *Error with no cause.
func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Wrap creates an *Error around an underlying cause.
func Wrap(kind Kind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

// --- Predicates ---

func IsValidation(err error) bool      { return kindOf(err) == KindValidation }
func IsConflict(err error) bool        { return kindOf(err) == KindConflict }
func IsAccessDenied(err error) bool    { return kindOf(err) == KindAccessDenied }
func IsNotFound(err error) bool        { return kindOf(err) == KindNotFound }
func IsStorageFailed(err error) bool   { return kindOf(err) == KindStorageFailed }
func IsConsistencyRisk(err error) bool { return kindOf(err) == KindConsistencyRisk }

// CodeOf returns the stable code of err, or empty string for foreign errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
