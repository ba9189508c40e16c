package loader

import (
	"errors"
	"fmt"
)

// ErrInvalidOption indicates an option value outside its allowed set.
var ErrInvalidOption = errors.New("invalid option")

// ParseError represents an error while parsing the options file.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// EnvError reports an environment variable that could not be parsed.
type EnvError struct {
	Name  string
	Value string
	Err   error
}

func (e *EnvError) Error() string {
	return fmt.Sprintf("environment %s=%q: %v", e.Name, e.Value, e.Err)
}

func (e *EnvError) Unwrap() error {
	return e.Err
}
