package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions.
//
// Statistically expected edge cases are never reported through these; they
// become skip reasons on the component result. These errors signal malformed
// input that the caller must fix.
var (
	ErrInsufficientData = errors.New("insufficient data for analysis")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrShapeMismatch    = errors.New("input shape mismatch")
	ErrNonFinite        = errors.New("non-finite input")
	ErrUnsortedIndex    = errors.New("timestamps not strictly increasing")

	ErrNotFound         = errors.New("resource not found")
	ErrResultNotFound   = fmt.Errorf("%w: result", ErrNotFound)
	ErrHypothesisAbsent = fmt.Errorf("%w: hypothesis", ErrNotFound)
)

// NewValidationError reports a rejected field together with the reason
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, field, reason)
}

// NewShapeError reports two lengths that were required to agree
func NewShapeError(what string, got, want int) error {
	return fmt.Errorf("%w: %s has length %d, want %d", ErrShapeMismatch, what, got, want)
}

// IsValidationError reports whether err was caused by caller-supplied input
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrShapeMismatch) ||
		errors.Is(err, ErrNonFinite) ||
		errors.Is(err, ErrUnsortedIndex) ||
		errors.Is(err, ErrInsufficientData)
}

// IsNotFoundError reports whether err is a not-found condition
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
