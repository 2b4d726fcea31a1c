package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure independently of the component that produced it.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindAlreadyExists
	KindInvalidState
	KindForbidden
	KindValidation
	KindTransactionMisuse
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindInvalidState:
		return "invalid_state"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation_failure"
	case KindTransactionMisuse:
		return "transaction_misuse"
	default:
		return "internal"
	}
}

// Error is the error type shared by the domain, the unit of work and the services.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error

	// Retryable marks failures a caller may retry as-is, e.g. a lost add-or-restore race.
	Retryable bool
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func NotFound(code, message string) *Error      { return newError(KindNotFound, code, message) }
func AlreadyExists(code, message string) *Error { return newError(KindAlreadyExists, code, message) }
func InvalidState(code, message string) *Error  { return newError(KindInvalidState, code, message) }
func Forbidden(code, message string) *Error     { return newError(KindForbidden, code, message) }
func Validation(code, message string) *Error    { return newError(KindValidation, code, message) }

func TransactionMisuse(code, message string) *Error {
	return newError(KindTransactionMisuse, code, message)
}

// Validationf builds a validation failure with a formatted message.
func Validationf(code, format string, args ...any) *Error {
	return newError(KindValidation, code, fmt.Sprintf(format, args...))
}

// Internal wraps an unexpected failure (store, broker, cancellation).
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal", Message: message, Err: err}
}

// AsRetryable returns a copy of e flagged as retryable, keeping e as the cause so
// errors.Is still matches the original sentinel.
func AsRetryable(e *Error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: e, Retryable: true}
}

// KindOf reports the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

var (
	ErrAlreadyRemoved = InvalidState("already_removed", "record is already removed")
	ErrNotRemoved     = InvalidState("not_removed", "record is not removed")
	ErrAlreadyDeleted = InvalidState("already_deleted", "record is already deleted")
	ErrNotDeleted     = InvalidState("not_deleted", "record is not deleted")
	ErrEmptyActor     = Validation("empty_actor", "acting user id is required")
)
