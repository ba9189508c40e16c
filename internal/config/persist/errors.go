package persist

import (
	"errors"
	"fmt"
)

// ErrMalformedDocument indicates the settings document could not be parsed.
var ErrMalformedDocument = errors.New("malformed settings document")

// MalformedDocumentError describes why a document was rejected.
type MalformedDocumentError struct {
	Path   string
	Reason string
	// Index is the offending category entry, when known.
	Index int
}

// Error implements the error interface.
func (e *MalformedDocumentError) Error() string {
	msg := e.Reason
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	return fmt.Sprintf("%v: %s", ErrMalformedDocument, msg)
}

// Is matches ErrMalformedDocument.
func (e *MalformedDocumentError) Is(target error) bool {
	return target == ErrMalformedDocument
}
