// Package common holds sentinel errors and helpers shared across the engine packages
package common

import (
	"errors"
	"fmt"
)

var (
	// ErrNilPointer is returned when a required pointer is nil
	ErrNilPointer = errors.New("nil pointer")
	// ErrNilArguments is a common error response to highlight that nils were passed in
	// when they should not have been
	ErrNilArguments = errors.New("received nil argument(s)")
	// ErrNilEvent is a common error for whenever a nil event occurs when it shouldn't have
	ErrNilEvent = errors.New("nil event received")
	// ErrFatal marks an error that must abort the run rather than be isolated
	ErrFatal = errors.New("engine fatal error")
	// ErrTypeAssertFailure is returned when a type assertion fails
	ErrTypeAssertFailure = errors.New("type assert failure")
)

// Fatal wraps err so that errors.Is(err, ErrFatal) reports true
func Fatal(err error) error {
	if err == nil || errors.Is(err, ErrFatal) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFatal, err)
}

// IsFatal reports whether err must abort the run
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// GetTypeAssertError returns additional information for when an assertion failure
// occurs.
// fieldDescription is an optional way to return what the affected field was for
func GetTypeAssertError(required string, received interface{}, fieldDescription ...string) error {
	var description string
	if len(fieldDescription) > 0 {
		description = " for: " + fieldDescription[0]
	}
	return fmt.Errorf("%w from %T to %s%s", ErrTypeAssertFailure, received, required, description)
}
