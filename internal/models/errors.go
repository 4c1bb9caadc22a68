package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for gateway lookups and mutations.
var (
	ErrNotFound  = errors.New("record not found")
	ErrNoChanges = errors.New("update made no changes")
)

// ErrValidation wraps failures reported by a model's validation hook.
var ErrValidation = errors.New("validation failed")

// ErrModelNameRequired indicates a repository was built without a model name.
var ErrModelNameRequired = errors.New("model name is required")

// Sentinel errors for query translation.
var (
	ErrInvalidQuery         = errors.New("invalid query")
	ErrUnknownField         = errors.New("unknown field")
	ErrSearchFieldsRequired = errors.New("search fields must be defined for fuzzy search")
)

// ErrCandidateLimit indicates a fuzzy or computed search matched more rows
// than the configured candidate cap; the result would have been truncated.
var ErrCandidateLimit = errors.New("search candidate limit exceeded")

// ErrDuplicateKey indicates a unique constraint violation (maps to HTTP 409 Conflict).
var ErrDuplicateKey = errors.New("duplicate key")

// ErrUnknownModel indicates a model name that is not registered.
var ErrUnknownModel = errors.New("unknown model")

// ErrFieldTooLong returns an error indicating a field exceeds its maximum length.
func ErrFieldTooLong(field string, maxLen int) error {
	return fmt.Errorf("%w: %s exceeds maximum length of %d", ErrValidation, field, maxLen)
}

// ErrFieldRequired returns a validation error for a missing field.
func ErrFieldRequired(field string) error {
	return fmt.Errorf("%w: %s is required", ErrValidation, field)
}
