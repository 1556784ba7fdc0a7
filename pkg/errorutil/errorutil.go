package errorutil

import (
	"errors"
	"fmt"
)

// Error codes produced by the workflow core. UNAUTHORIZED and INTERNAL_ERROR are only
// raised by the transport layer.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeStateConflict      = "STATE_CONFLICT"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodePersistenceFailure = "PERSISTENCE_FAILURE"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInternal           = "INTERNAL_ERROR"
)

// Sentinels for errors.Is matching by code.
var (
	ErrNotFound           = &DomainError{Code: CodeNotFound}
	ErrStateConflict      = &DomainError{Code: CodeStateConflict}
	ErrInvalidRequest     = &DomainError{Code: CodeInvalidRequest}
	ErrPersistenceFailure = &DomainError{Code: CodePersistenceFailure}
)

// DomainError standardizes application errors.
type DomainError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, Details: details}
}

func NewInvalidRequest(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidRequest, message, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Details: details,
	}
}

// NewStateConflict reports an illegal lifecycle transition.
func NewStateConflict(current, attempted, reason string) error {
	return &DomainError{
		Code:    CodeStateConflict,
		Message: "invalid state transition",
		Details: map[string]any{
			"current_state":   current,
			"attempted_state": attempted,
			"reason":          reason,
		},
	}
}

// NewPersistenceFailure hides the cause behind a generic message; the caller is expected
// to have logged err together with requestID.
func NewPersistenceFailure(err error, requestID string) error {
	details := map[string]any{}
	if requestID != "" {
		details["request_id"] = requestID
	}
	return &DomainError{
		Code:    CodePersistenceFailure,
		Message: "service unavailable",
		Details: details,
		Err:     err,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:    CodeInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:    CodeInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// IsDomainError reports whether err carries one of the core error kinds.
func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}
