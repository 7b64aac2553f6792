package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownKey reports a key without a definition.
	ErrUnknownKey = errors.New("unknown config key")

	// ErrNonexistentOption reports an attempt to apply an option the
	// target store cannot hold.
	ErrNonexistentOption = errors.New("attempt to apply non-existent option")

	// ErrBadValue reports text that does not parse as the option's kind or
	// lies outside its range.
	ErrBadValue = errors.New("bad config value")

	// ErrKindMismatch reports a Value whose kind differs from the
	// definition.
	ErrKindMismatch = errors.New("config value kind mismatch")
)

// ValidationError carries the violations found by a Validate method.
type ValidationError struct {
	Subject    string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Subject, strings.Join(e.Violations, "; "))
}

// Validation returns a *ValidationError for a non-empty violation list
// and nil otherwise.
func Validation(subject string, violations []string) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Subject: subject, Violations: violations}
}
