package schema

import (
	"errors"
	"fmt"
)

// Errors returned by schema operations.
var (
	// ErrDuplicateKey indicates a field key was registered twice.
	ErrDuplicateKey = errors.New("duplicate field key")

	// ErrInvalidField indicates a field is structurally unusable.
	ErrInvalidField = errors.New("invalid field")

	// ErrTypeMismatch indicates a value cannot be converted to the field's kind.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrStatelessField indicates a value was offered to a Button or TextParagraph.
	ErrStatelessField = errors.New("field holds no value")
)

// DuplicateKeyError describes a key registered under two locations.
type DuplicateKeyError struct {
	Key string
	// Existing is "category/subcategory" of the first registration.
	Existing string
	// Incoming is "category/subcategory" of the rejected registration.
	Incoming string
}

// Error implements the error interface.
func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate field key %q: registered in %s, again in %s", e.Key, e.Existing, e.Incoming)
}

// Is matches ErrDuplicateKey.
func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}

// FieldError describes a structurally invalid field.
type FieldError struct {
	Key     string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	key := e.Key
	if key == "" {
		key = "<keyless>"
	}
	if e.Err != nil {
		return fmt.Sprintf("field %s: %s: %v", key, e.Message, e.Err)
	}
	return fmt.Sprintf("field %s: %s", key, e.Message)
}

// Unwrap returns the underlying error.
func (e *FieldError) Unwrap() error {
	return e.Err
}

// Is matches ErrInvalidField.
func (e *FieldError) Is(target error) bool {
	return target == ErrInvalidField
}

// ValueError is returned when a value does not fit a field's kind.
type ValueError struct {
	Key   string
	Kind  Kind
	Value any
	// Err is ErrTypeMismatch or ErrStatelessField, possibly wrapped.
	Err error
}

// Error implements the error interface.
func (e *ValueError) Error() string {
	return fmt.Sprintf("value %v (%T) for %s field %q: %v", e.Value, e.Value, e.Kind, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValueError) Unwrap() error {
	return e.Err
}
