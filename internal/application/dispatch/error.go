package dispatch

import "fmt"

// Error aggregates the handler failures of one dispatch batch. The first
// failure in submission order comes first; none are suppressed.
type Error struct {
	Errs []error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Errs) == 1 {
		return fmt.Sprintf("event dispatch failed: %v", e.Errs[0])
	}
	return fmt.Sprintf("event dispatch failed: %d handler errors, first: %v", len(e.Errs), e.Errs[0])
}

// Unwrap exposes all handler errors to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	return e.Errs
}
