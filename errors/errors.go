// Package errors provides error handling for threatbrief.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Marks that survive wrapping, used for the report error taxonomy
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Classify an error without losing its message
//	return errors.MarkParse(err)
//
//	// Check errors
//	if errors.IsParseError(err) {
//	    // reject the request before any stage runs
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapAll     = crdb.UnwrapAll
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
	FlattenHints  = crdb.FlattenHints
)

// Report error taxonomy.
// Mark errors with these rather than wrapping them so the original message stays first.
var (
	// ErrInput indicates malformed or missing runtime input
	ErrInput = New("invalid input")

	// ErrParse indicates evidence that could not be canonicalized
	ErrParse = New("evidence parse failed")

	// ErrGeneration indicates a backend call failed, timed out, or returned unusable text
	ErrGeneration = New("generation failed")

	// ErrRender indicates the final document could not be produced
	ErrRender = New("render failed")

	// ErrEmptyResult indicates the report stage produced no text
	ErrEmptyResult = New("empty result")
)

// Common sentinel errors shared by transports.
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = New("operation timed out")

	// ErrServiceUnavailable indicates a required service is not available
	ErrServiceUnavailable = New("service unavailable")
)

// MarkInput classifies err as an input error
func MarkInput(err error) error {
	return Mark(err, ErrInput)
}

// MarkParse classifies err as an evidence parse error
func MarkParse(err error) error {
	return Mark(err, ErrParse)
}

// MarkGeneration classifies err as a generation error
func MarkGeneration(err error) error {
	return Mark(err, ErrGeneration)
}

// MarkRender classifies err as a render error
func MarkRender(err error) error {
	return Mark(err, ErrRender)
}

// NewInputErrorf creates an input error with a formatted message
func NewInputErrorf(format string, args ...interface{}) error {
	return MarkInput(Newf(format, args...))
}

// NewParseErrorf creates a parse error with a formatted message
func NewParseErrorf(format string, args ...interface{}) error {
	return MarkParse(Newf(format, args...))
}

// NewGenerationErrorf creates a generation error with a formatted reason
func NewGenerationErrorf(format string, args ...interface{}) error {
	return MarkGeneration(Newf(format, args...))
}

// NewRenderErrorf creates a render error with a formatted message
func NewRenderErrorf(format string, args ...interface{}) error {
	return MarkRender(Newf(format, args...))
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrNotFound)
}

// IsInputError checks if an error is or wraps ErrInput
func IsInputError(err error) bool {
	return err != nil && Is(err, ErrInput)
}

// IsParseError checks if an error is or wraps ErrParse
func IsParseError(err error) bool {
	return err != nil && Is(err, ErrParse)
}

// IsGenerationError checks if an error is or wraps ErrGeneration
func IsGenerationError(err error) bool {
	return err != nil && Is(err, ErrGeneration)
}

// IsRenderError checks if an error is or wraps ErrRender
func IsRenderError(err error) bool {
	return err != nil && Is(err, ErrRender)
}

// IsEmptyResultError checks if an error is or wraps ErrEmptyResult
func IsEmptyResultError(err error) bool {
	return err != nil && Is(err, ErrEmptyResult)
}

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsTimeoutError checks if an error is or wraps ErrTimeout
func IsTimeoutError(err error) bool {
	return err != nil && Is(err, ErrTimeout)
}
