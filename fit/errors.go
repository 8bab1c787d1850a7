package fit

import (
	"errors"
	"fmt"
)

// Kind classifies failures reported to the caller.
type Kind string

const (
	KindSelection         Kind = "SELECTION"
	KindCredentialMissing Kind = "CREDENTIAL_MISSING"
	KindOracle            Kind = "ORACLE"
	KindMeasurement       Kind = "MEASUREMENT"
	KindInvalidInput      Kind = "INVALID_INPUT"
)

// User facing messages.
const (
	MsgSelectExactlyOne = "Please select exactly one article frame"
	MsgSelectFrame      = "Selected element must be a frame"
	MsgSelectFirst      = "Please select an article frame first"
	MsgSaveKeyFirst     = "Please save your Claude API key first"
	MsgNoColumns        = "No body columns detected in this frame"
)

// Error is a classified failure. Its text is what the caller sees in an
// error event, so the kind is not part of it.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an Error with a formatted message.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error around cause.
func WrapError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or "" when it is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
