package manifest

import (
	"errors"
	"fmt"
)

// Errors for manifest parsing and building.
var (
	ErrEmptyManifest     = errors.New("manifest is empty")
	ErrNoCategories      = errors.New("manifest declares no categories")
	ErrMissingName       = errors.New("missing name")
	ErrMissingKind       = errors.New("missing kind")
	ErrInvalidRange      = errors.New("invalid range")
	ErrNoRuleEngine      = errors.New("visible_when requires a rule engine")
	ErrUnknownAction     = errors.New("unknown button action")
	ErrUnknownDependency = errors.New("depends_on names unknown keys")
)

// Error locates a manifest problem.
type Error struct {
	// Location is "category/subcategory/key" or an index path.
	Location string
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("manifest %s: %v", e.Location, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}
