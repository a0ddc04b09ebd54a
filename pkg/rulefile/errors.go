package rulefile

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyExpression indicates an expression field that is present but blank.
	ErrEmptyExpression = errors.New("expression is empty")

	// ErrInvalidStep indicates a run step that does not name exactly one action.
	ErrInvalidStep = errors.New("invalid run step")

	// ErrMultipleDocuments indicates a rule file holding more than one YAML document.
	ErrMultipleDocuments = errors.New("a rule file must define exactly one rule")

	// ErrMissingName indicates a rule document without a rule name.
	ErrMissingName = errors.New("rule name is required")

	// ErrConditionCycle indicates conditions that call themselves, directly
	// or through other conditions.
	ErrConditionCycle = errors.New("conditions call each other in a cycle")

	// ErrRuleFailed is the cause of a StepError raised by a fail step.
	ErrRuleFailed = errors.New("rule failed")
)

// CompileError reports an expression that could not be compiled.
type CompileError struct {
	// File is the rule file.
	File string

	// Line is the line of the expression in File.
	Line int

	// Field names the rule element holding the expression (e.g. "run_when").
	Field string

	// Cause is the underlying error.
	Cause error
}

// Error returns the error message.
func (e *CompileError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %v", e.File, e.Line, e.Field, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *CompileError) Unwrap() error {
	return e.Cause
}

// Location returns "file:line".
func (e *CompileError) Location() string {
	return fmt.Sprintf("%s:%d", e.File, e.Line)
}

// StepError reports a failure while evaluating a rule file expression or
// applying a run step to the state.
type StepError struct {
	File  string
	Line  int
	Field string
	Cause error
}

// Error returns the error message.
func (e *StepError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %v", e.File, e.Line, e.Field, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StepError) Unwrap() error {
	return e.Cause
}

// Location returns "file:line".
func (e *StepError) Location() string {
	return fmt.Sprintf("%s:%d", e.File, e.Line)
}
