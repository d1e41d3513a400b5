// Package domainerrors defines the coded error taxonomy returned by services.
//
// Stores return sentinel errors (pkg/platform/sentinel); services translate those
// facts into coded errors that transports can map onto stable responses. Callers
// branch on the code, never on the message.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for transport mapping and caller branching.
type Code string

const (
	// CodeValidation marks missing or malformed input (phone/email, field, ids).
	CodeValidation Code = "VALIDATION"
	// CodeNotFound marks an absent person, contact, request, or event.
	CodeNotFound Code = "NOT_FOUND"
	// CodeUnauthorized marks a missing or invalid principal.
	CodeUnauthorized Code = "UNAUTHORIZED"
	// CodeForbidden marks an operation the principal may not perform.
	CodeForbidden Code = "FORBIDDEN"
	// CodeConflict marks a state conflict; Reason narrows it for the caller.
	CodeConflict Code = "CONFLICT"
	// CodeInternal marks store or compute failures with no partial result.
	CodeInternal Code = "INTERNAL"
)

// Conflict reasons carried alongside CodeConflict so callers can branch
// without parsing messages.
const (
	ReasonBlocked            = "BLOCKED"
	ReasonAlreadyConnected   = "ALREADY_CONNECTED"
	ReasonRequestExists      = "REQUEST_EXISTS"
	ReasonMaxRequestsReached = "MAX_REQUESTS_REACHED"
	ReasonAlreadyApplied     = "ALREADY_APPLIED"
)

// Error is a coded domain error. Reason is optional and only meaningful for
// CodeConflict.
type Error struct {
	Code    Code
	Reason  string
	Message string
	wrapped error
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// New creates a coded error with a caller-facing message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a CodeConflict error carrying a stable reason.
func Conflict(reason, message string) *Error {
	return &Error{Code: CodeConflict, Reason: reason, Message: message}
}

// Wrap annotates err with a code while preserving the cause for errors.Is/As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, wrapped: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// HasReason reports whether err carries the given conflict reason.
func HasReason(err error, reason string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason == reason
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ReasonOf extracts the conflict reason from err, or "".
func ReasonOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}
