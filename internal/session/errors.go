package session

import (
	"errors"
	"fmt"

	"github.com/sinmod/sinconfig/internal/config/schema"
)

// Session errors.
var (
	// ErrNoSchema indicates a session was configured without a schema.
	ErrNoSchema = errors.New("session requires a schema")

	// ErrAlreadyOpen indicates Open was called on an open session.
	ErrAlreadyOpen = errors.New("session already open")

	// ErrNotOpen indicates Close was called on a closed session.
	ErrNotOpen = errors.New("session not open")

	// ErrNoKeyCapturer indicates a key capture was requested but the
	// renderer provides no capture capability.
	ErrNoKeyCapturer = errors.New("no key capturer configured")

	// ErrHidden indicates an interaction with a field that is not visible.
	ErrHidden = errors.New("field is hidden")

	// ErrWrongKind indicates an operation on a field of the wrong kind.
	ErrWrongKind = errors.New("wrong field kind")
)

// KindError reports an operation applied to a field of the wrong kind.
type KindError struct {
	Op   string
	Key  string
	Want schema.Kind
	Got  schema.Kind
}

func (e *KindError) Error() string {
	return fmt.Sprintf("%s %q: want %s field, got %s", e.Op, e.Key, e.Want, e.Got)
}

// Is matches ErrWrongKind.
func (e *KindError) Is(target error) bool {
	return target == ErrWrongKind
}
