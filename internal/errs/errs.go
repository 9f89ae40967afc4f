// Package errs provides the structured error type shared by the scoring
// core and its outer layers. Errors carry a code so callers can branch with
// errors.Is against the exported sentinels regardless of wrapping.
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code classifies an error.
type Code string

const (
	CodeInvalidArgument      Code = "INVALID_ARGUMENT"
	CodeInvalidFeatureSchema Code = "INVALID_FEATURE_SCHEMA"
	CodeArtifactNotFound     Code = "ARTIFACT_NOT_FOUND"
	CodeArtifactCorrupt      Code = "ARTIFACT_CORRUPT"
	CodeModelUnavailable     Code = "MODEL_UNAVAILABLE"
	CodeTrainingInProgress   Code = "TRAINING_IN_PROGRESS"
	CodeNotFound             Code = "NOT_FOUND"
)

// Sentinels for errors.Is. Only the code is compared.
var (
	ErrInvalidArgument      = &Error{Code: CodeInvalidArgument}
	ErrInvalidFeatureSchema = &Error{Code: CodeInvalidFeatureSchema}
	ErrArtifactNotFound     = &Error{Code: CodeArtifactNotFound}
	ErrArtifactCorrupt      = &Error{Code: CodeArtifactCorrupt}
	ErrModelUnavailable     = &Error{Code: CodeModelUnavailable}
	ErrTrainingInProgress   = &Error{Code: CodeTrainingInProgress}
	ErrNotFound             = &Error{Code: CodeNotFound}
)

// Error is the structured error used across the module.
type Error struct {
	Code    Code
	Message string
	// Fields holds per-field validation messages, keyed by field name.
	Fields map[string][]string
	Cause  error
}

// Error returns a formatted error string.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		names := make([]string, 0, len(e.Fields))
		for name := range e.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString(" (")
		for i, name := range names {
			if i > 0 {
				b.WriteString("; ")
			}
			fmt.Fprintf(&b, "%s: %s", name, strings.Join(e.Fields[name], ", "))
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error that wraps cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Invalid creates an InvalidArgument error carrying field messages.
func Invalid(message string, fields map[string][]string) *Error {
	return &Error{Code: CodeInvalidArgument, Message: message, Fields: fields}
}

// CodeOf extracts the outermost code from an error chain.
// Returns an empty code if err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// FieldsOf returns the field messages of the first Error in the chain that
// has any.
func FieldsOf(err error) map[string][]string {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return nil
		}
		if len(e.Fields) > 0 {
			return e.Fields
		}
		err = e.Cause
	}
	return nil
}
