// Package domainerrors defines the error taxonomy shared by services and transports.
//
// Services return *Error values carrying a Code so callers can branch on the kind of
// failure without string matching. Stores never return these directly; they return
// sentinel facts (see pkg/platform/sentinel) that services translate.
//
// Details attach operator-facing context (shipment_id, claim_id, status, ...) so a
// failure can be acted on without inspecting internals.
package domainerrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code classifies a domain error.
type Code string

const (
	// CodeValidation: malformed or insufficient input. Never partially applied.
	CodeValidation Code = "validation_error"
	// CodeBadRequest: the request could not be understood at all (transport level).
	CodeBadRequest Code = "bad_request"
	// CodeConflict: a one-per-shipment invariant would be violated.
	CodeConflict Code = "conflict"
	// CodeIllegalTransition: the claim state machine rejects the action.
	CodeIllegalTransition Code = "illegal_transition"
	// CodeNotFound: the referenced shipment, audit or claim does not exist.
	CodeNotFound Code = "not_found"
	// CodeInvariantViolation: a model constructor or method refused to build an invalid value.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeTimeout: the caller's context expired before the unit of work ran.
	CodeTimeout Code = "timeout"
	// CodeInternal: infrastructure failure.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error with optional structured details.
type Error struct {
	Code    Code
	Message string
	Details map[string]string
	Err     error
}

// New creates a coded error.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// With returns the error with an additional detail attached.
func (e *Error) With(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = fmt.Sprint(value)
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(k)
			b.WriteString("=")
			b.WriteString(e.Details[k])
		}
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// CodeOf returns the outermost code in err's chain, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// DetailsOf returns the details of the outermost *Error in err's chain.
func DetailsOf(err error) map[string]string {
	var de *Error
	if errors.As(err, &de) {
		return de.Details
	}
	return nil
}
