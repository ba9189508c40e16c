package rule

import (
	"errors"
	"fmt"
)

// Errors returned by rule compilation and evaluation.
var (
	// ErrEmptyExpression is returned when compiling a blank expression.
	ErrEmptyExpression = errors.New("empty rule expression")

	// ErrEngineClosed is returned when evaluating after Close.
	ErrEngineClosed = errors.New("rule engine is closed")
)

// CompileError reports an expression that does not parse.
type CompileError struct {
	Expr string
	Err  error
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	return fmt.Sprintf("compile rule %q: %v", e.Expr, e.Err)
}

// Unwrap returns the underlying error.
func (e *CompileError) Unwrap() error {
	return e.Err
}

// EvalError reports a runtime failure while evaluating an expression.
type EvalError struct {
	Expr string
	Err  error
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluate rule %q: %v", e.Expr, e.Err)
}

// Unwrap returns the underlying error.
func (e *EvalError) Unwrap() error {
	return e.Err
}
