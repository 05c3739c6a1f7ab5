// Package errors defines the sentinel errors shared across crew.
//
// Callers check categories with errors.Is(). This package must not import
// any other internal package.
package errors

import "errors"

var (
	// ErrMissingConfig indicates that a required configuration value
	// (API key, endpoint, relay project id) is not set.
	ErrMissingConfig = errors.New("missing configuration")

	// ErrTransport indicates that a call to the completion service or the
	// message bus failed before a usable response was received.
	ErrTransport = errors.New("transport failure")

	// ErrStepLimit indicates that a graph run exceeded its step budget.
	ErrStepLimit = errors.New("graph step limit exceeded")

	// ErrUnknownNode indicates that a graph edge or start point names a
	// node that was never added.
	ErrUnknownNode = errors.New("unknown graph node")

	// ErrParse indicates that a model response or an input document could
	// not be parsed into the expected shape.
	ErrParse = errors.New("parse failure")

	// ErrSessionNotFound indicates that the requested planner session does
	// not exist in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// New returns an error with the given text.
func New(text string) error {
	return errors.New(text)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join returns an error wrapping all non-nil errs.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
