// Package domainerrors defines the user-visible error taxonomy for the
// trial pipeline: mapping failures, persistence failures (with a machine
// readable reason), and read-side query failures.
//
// Stores and infrastructure return sentinel errors (pkg/platform/sentinel);
// services translate them into these domain errors at the boundary so
// callers never branch on driver-specific error strings.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the failure class.
type Code string

const (
	// CodeMapping marks a structurally malformed source record. Field-level
	// problems (bad date shapes, empty strings) never produce this; they
	// resolve to absent values instead.
	CodeMapping Code = "mapping_error"

	// CodePersistence marks a failed write. The whole record's transaction
	// has been rolled back when this is returned.
	CodePersistence Code = "persistence_error"

	// CodeQuery marks a failed read. Distinct from "no rows": an empty
	// result is a value, not an error.
	CodeQuery Code = "query_error"

	// CodeInvalidInput marks rejected caller input at a trust boundary.
	CodeInvalidInput Code = "invalid_input"

	// CodeNotFound marks a lookup for an identifier that does not exist.
	CodeNotFound Code = "not_found"

	// CodeInternal is the fallback for unexpected conditions.
	CodeInternal Code = "internal"
)

// Reason narrows a persistence failure.
type Reason string

const (
	ReasonConflict     Reason = "conflict"
	ReasonConnectivity Reason = "connectivity"
	ReasonConstraint   Reason = "constraint"
)

// Error is the concrete domain error. Compare with HasCode/ReasonOf rather
// than type assertions.
type Error struct {
	Code    Code
	Reason  Reason
	Message string
	wrapped error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Reason)
	}
	if e.wrapped != nil {
		msg = msg + ": " + e.wrapped.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

// New builds a domain error with no underlying cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a domain code to an underlying error, preserving the chain
// for errors.Is/As.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, wrapped: err}
}

// Persistence builds a CodePersistence error with a sub-reason.
func Persistence(err error, reason Reason, msg string) *Error {
	return &Error{Code: CodePersistence, Reason: reason, Message: msg, wrapped: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.wrapped
		de = nil
	}
	return false
}

// ReasonOf returns the persistence sub-reason carried by the chain, or ""
// when none is present.
func ReasonOf(err error) Reason {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}
