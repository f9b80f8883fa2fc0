package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies attendance failures.
type Kind string

const (
	KindParameter         Kind = "PARAMETER"
	KindClock             Kind = "CLOCK"
	KindDataIntegrity     Kind = "DATA_INTEGRITY"
	KindTimeValidation    Kind = "TIME_VALIDATION"
	KindOverlap           Kind = "OVERLAP"
	KindNotCheckedIn      Kind = "NOT_CHECKED_IN"
	KindAlreadyCheckedOut Kind = "ALREADY_CHECKED_OUT"
	KindTransientNetwork  Kind = "TRANSIENT_NETWORK"
	KindRemoteRejection   Kind = "REMOTE_REJECTION"
)

type Error struct {
	Kind    Kind
	Message string // operator-facing message
	Code    int    // remote response code, REMOTE_REJECTION only
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same Kind, so the sentinel values
// below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// Rejection builds a REMOTE_REJECTION carrying the remote code.
func Rejection(code int, message string) *Error {
	return &Error{Kind: KindRemoteRejection, Code: code, Message: message}
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Recoverable reports whether a failed mutation should be parked as a
// pending intent and replayed later.
func Recoverable(err error) bool {
	switch KindOf(err) {
	case KindTransientNetwork:
		return true
	case KindRemoteRejection:
		var e *Error
		errors.As(err, &e)
		return e.Code >= 500 || e.Code == 401
	}
	return false
}
