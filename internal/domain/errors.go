package domain

import (
	"errors"
	"fmt"
)

// Error kinds returned by the chat core. The REST layer maps them to HTTP
// statuses; everything else bubbles up as an internal error.

var (
	// ErrForbidden covers every authorization violation: wrong session owner,
	// claim attempt by a different admin. Deliberately carries no detail.
	ErrForbidden = errors.New("access denied")

	// ErrSessionExpired means the session duration cap was exceeded. The session
	// stays active; only the idle sweep or the user-side get-or-create path
	// closes it.
	ErrSessionExpired = errors.New("chat session duration exceeded")
)

// ValidationError is a recoverable bad-input error whose message is returned to
// the caller as-is. MaxLength is set for length violations so the client can
// adjust.
type ValidationError struct {
	Message   string
	MaxLength int
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

func NewMessageTooLongError(maxLength int) *ValidationError {
	return &ValidationError{
		Message:   fmt.Sprintf("message exceeds maximum length of %d characters", maxLength),
		MaxLength: maxLength,
	}
}

// NotFoundError reports a missing sender or session.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func NewNotFoundError(msg string) *NotFoundError {
	return &NotFoundError{Message: msg}
}

// InternalError reports a broken precondition on the caller's side (missing
// sender identity, absent system sender). Logged, never detailed to clients.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string { return e.Message }

func NewInternalError(msg string) *InternalError {
	return &InternalError{Message: msg}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFoundError(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}
