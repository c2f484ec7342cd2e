package medbridge_errors

import (
	"errors"
	"fmt"
	"time"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrInvalidPair  = errors.New("invalid pair")
	ErrRoleMismatch = errors.New("role mismatch")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrDependency   = errors.New("dependency unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrQueueFull    = errors.New("queue full")
)

// Error attaches a user-facing message to one of the sentinel kinds above.
// errors.Is(err, ErrConflict) matches an *Error whose Kind is ErrConflict.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind error, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func NotFound(msg string) error     { return New(ErrNotFound, msg) }
func Conflict(msg string) error     { return New(ErrConflict, msg) }
func InvalidState(msg string) error { return New(ErrInvalidState, msg) }
func InvalidPair(msg string) error  { return New(ErrInvalidPair, msg) }
func RoleMismatch(msg string) error { return New(ErrRoleMismatch, msg) }
func Forbidden(msg string) error    { return New(ErrForbidden, msg) }
func InvalidInput(msg string) error { return New(ErrInvalidInput, msg) }

func Dependency(msg string, cause error) error {
	return Wrap(ErrDependency, msg, cause)
}

// Code returns the stable machine-readable code for err, used by the HTTP
// and websocket layers.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrInvalidState):
		return "INVALID_STATE"
	case errors.Is(err, ErrInvalidPair):
		return "INVALID_PAIR"
	case errors.Is(err, ErrRoleMismatch):
		return "ROLE_MISMATCH"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrInvalidInput):
		return "VALIDATION_FAILED"
	case errors.Is(err, ErrDependency):
		return "DEPENDENCY_FAILED"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	default:
		return "INTERNAL_ERROR"
	}
}

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}
