// Package errs defines the typed errors shared by the service boundaries.
// Every failure surfaced to a caller is either a validation error, which the
// caller can fix by correcting input, or an internal error whose cause is kept
// for operators and never shown to end users.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an application error.
type Kind string

// Error kinds exposed to callers.
const (
	KindValidation Kind = "validation"
	KindInternal   Kind = "internal"
)

// GenericMessage is the user-facing text for internal errors.
const GenericMessage = "I'm sorry, I encountered an error. Please try again later."

// FieldIssue describes one failed constraint on one input field.
type FieldIssue struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Param      string `json:"param,omitempty"`
	Message    string `json:"message"`
}

// Error is the application error carried across package boundaries.
type Error struct {
	kind    Kind
	message string
	details []FieldIssue
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.err)
	}
	if len(e.details) > 0 {
		fields := make([]string, 0, len(e.details))
		for _, d := range e.details {
			fields = append(fields, d.Field+" ("+d.Constraint+")")
		}
		return fmt.Sprintf("%s: %s: %s", e.kind, e.message, strings.Join(fields, ", "))
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

// Kind returns the error kind.
func (e *Error) Kind() Kind { return e.kind }

// Message returns the message that is safe to show to an end user.
func (e *Error) Message() string { return e.message }

// Details returns the per-field validation issues, if any.
func (e *Error) Details() []FieldIssue { return e.details }

func (e *Error) Unwrap() error { return e.err }

// NewValidationError creates a validation error with optional field details.
func NewValidationError(message string, details ...FieldIssue) error {
	return &Error{kind: KindValidation, message: message, details: details}
}

// NewInternalError creates an internal error. message is shown to users,
// cause is only available through Unwrap and Error.
func NewInternalError(message string, cause error) error {
	return &Error{kind: KindInternal, message: message, err: cause}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for errors
// that are not application errors.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind()
	}
	return KindInternal
}
