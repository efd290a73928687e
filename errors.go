package tytx

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes (exported consts so hosts can branch on kinds without matching messages)
const (
	CodeTypeMismatch      = "type_mismatch"
	CodeMissingField      = "missing_field"
	CodeUnknownValidation = "unknown_validation"
	CodeMetadataSyntax    = "metadata_syntax"
	CodeExpressionSyntax  = "expression_syntax"
	CodeInvalidValue      = "invalid_value"
	CodeUnsupportedType   = "unsupported_type"
	CodeSchemaInvalid     = "schema_invalid"
)

// Validation issue codes.
const (
	CodeTooShort    = "too_short"
	CodeTooLong     = "too_long"
	CodeWrongLength = "wrong_length"
	CodePattern     = "pattern"
	CodeTooSmall    = "too_small"
	CodeTooBig      = "too_big"
	CodeInvalidEnum = "invalid_enum"
	CodeRequired    = "required"
	CodeForbidden   = "forbidden" // a negated rule held
)

// Error is a structural failure raised by the engine. Grammar-level problems
// (unknown suffix or code) never produce an Error; they pass the text through.
type Error struct {
	Code    string // One of the Code* constants above.
	Path    string // JSON Pointer of the offending value when known.
	Message string
	// Fragment is the offending piece of input (facet string, expression, field name).
	Fragment string
	Cause    error
}

func (e *Error) Error() string {
	b := &strings.Builder{}
	b.WriteString("tytx: ")
	b.WriteString(e.Code)
	if e.Path != "" {
		fmt.Fprintf(b, " at %s", e.Path)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Fragment != "" {
		fmt.Fprintf(b, " (%q)", e.Fragment)
	}
	if e.Cause != nil {
		fmt.Fprintf(b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches by code, so errors.Is(err, ErrTypeMismatch) works for any
// type_mismatch error regardless of path or message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrTypeMismatch      = &Error{Code: CodeTypeMismatch}
	ErrMissingField      = &Error{Code: CodeMissingField}
	ErrUnknownValidation = &Error{Code: CodeUnknownValidation}
	ErrMetadataSyntax    = &Error{Code: CodeMetadataSyntax}
	ErrExpressionSyntax  = &Error{Code: CodeExpressionSyntax}
	ErrInvalidValue      = &Error{Code: CodeInvalidValue}
	ErrUnsupportedType   = &Error{Code: CodeUnsupportedType}
	ErrSchemaInvalid     = &Error{Code: CodeSchemaInvalid}
)

// AsError extracts an *Error from err using errors.As internally.
func AsError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func newError(code, path, msg, fragment string) *Error {
	return &Error{Code: code, Path: path, Message: msg, Fragment: fragment}
}

// Issue is a single validation failure.
type Issue struct {
	Rule    string // Validation name that failed.
	Code    string // One of the validation issue codes.
	Message string
	Path    string
	// Params carries structured parameters (e.g. {"min":3, "got":2}).
	Params map[string]any
}

// Issues is a collection of validation failures that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		if it.Path != "" {
			fmt.Fprintf(b, "%s(%s) at %s", it.Code, it.Rule, it.Path)
		} else {
			fmt.Fprintf(b, "%s(%s)", it.Code, it.Rule)
		}
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}
