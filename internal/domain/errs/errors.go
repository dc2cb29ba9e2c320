// Package errs defines sentinel errors shared by the domain and application layers.
package errs

import "errors"

var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists is returned when a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput is returned when input data is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrConcurrentModification is returned when a version conflict occurs
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrInvalidState is returned when aggregate state is invalid
	ErrInvalidState = errors.New("invalid aggregate state")

	// ErrTransient marks an error condition that is expected to succeed on retry.
	// Wrap failures with it (fmt.Errorf("...: %w", errs.ErrTransient)) to make
	// them retryable by the default retry classifier.
	ErrTransient = errors.New("transient failure")
)
