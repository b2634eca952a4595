package arcade

import (
	"errors"
	"fmt"
)

// Error kinds returned by Service operations. Callers match with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrIllegalState     = errors.New("illegal state")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrConflict         = errors.New("conflict")
	ErrUnhandled        = errors.New("unhandled")
)

// Signals raised by Store implementations. The service translates them into
// the kinds above.
var (
	ErrRecordNotFound  = errors.New("record not found")
	ErrUniqueViolation = errors.New("unique constraint violation")
	ErrNegativeBalance = errors.New("balance must not be negative")
	ErrStaleVersion    = errors.New("row version changed")
)

type Kind string

const (
	KindNone             Kind = "ok"
	KindNotFound         Kind = "not_found"
	KindPermissionDenied Kind = "permission_denied"
	KindIllegalState     Kind = "illegal_state"
	KindInvalidArgument  Kind = "invalid_argument"
	KindConflict         Kind = "conflict"
	KindUnhandled        Kind = "unhandled"
)

// KindOf classifies err. Errors outside the taxonomy are Unhandled.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrIllegalState):
		return KindIllegalState
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindUnhandled
	}
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func permissionDenied(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPermissionDenied, fmt.Sprintf(format, args...))
}

func illegalState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalState, fmt.Sprintf(format, args...))
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func unhandled(msg string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnhandled, msg, cause)
}

// commitError maps a failed write transaction onto the taxonomy. Constraint
// and version signals mean another writer got there first.
func commitError(op string, err error) error {
	switch {
	case errors.Is(err, ErrUniqueViolation):
		return conflict("%s: slot already taken", op)
	case errors.Is(err, ErrNegativeBalance):
		return conflict("%s: balance changed before commit", op)
	case errors.Is(err, ErrStaleVersion):
		return conflict("%s: arcade machine was modified concurrently", op)
	default:
		return unhandled(op, err)
	}
}
