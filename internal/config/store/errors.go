package store

import (
	"errors"
	"fmt"

	"github.com/sinmod/sinconfig/internal/config/schema"
)

// ErrUnknownKey indicates a resolve or set against a key the schema does
// not define.
var ErrUnknownKey = errors.New("unknown setting key")

// UnknownKeyError carries the offending key.
type UnknownKeyError struct {
	Key string
}

// Error implements the error interface.
func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("unknown setting key %q", e.Key)
}

// Is matches ErrUnknownKey.
func (e *UnknownKeyError) Is(target error) bool {
	return target == ErrUnknownKey
}

// TypeError is returned by the typed Settings readers when the resolved
// value has a different type.
type TypeError struct {
	Key      string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	return fmt.Sprintf("type error for %s: expected %s, got %s", e.Key, e.Expected, e.Actual)
}

// Is matches schema.ErrTypeMismatch.
func (e *TypeError) Is(target error) bool {
	return target == schema.ErrTypeMismatch
}
