package engine

import (
	"errors"
	"fmt"
)

// Definition errors, raised synchronously from the rule builder.
var (
	// ErrInvalidRequirementArity indicates a requirement was declared with
	// something other than (type) or (key, type).
	ErrInvalidRequirementArity = errors.New("requirement takes a type or a key and a type")

	// ErrInvalidRequirement indicates a requirement argument had the wrong kind.
	ErrInvalidRequirement = errors.New("invalid requirement")

	// ErrDuplicateCondition indicates a condition name was defined twice on one rule.
	ErrDuplicateCondition = errors.New("duplicate condition name")

	// ErrReservedCondition indicates a condition name collides with a built-in helper.
	ErrReservedCondition = errors.New("condition name is reserved")

	// ErrMissingBlock indicates a guard, logic or condition was set without a callable.
	ErrMissingBlock = errors.New("a callable is required")

	// ErrInvalidPriority indicates the priority could not be coerced to an integer.
	ErrInvalidPriority = errors.New("priority must be an integer")

	// ErrInvalidConcurrencyMode indicates a concurrency mode other than safe or unsafe.
	ErrInvalidConcurrencyMode = errors.New("concurrency has to be one of safe, unsafe")

	// ErrRuleSealed indicates a definition-time attribute was changed after the
	// rule joined a rule set.
	ErrRuleSealed = errors.New("rule definition is sealed")

	// ErrUnknownType indicates a type name that is not in the type registry.
	ErrUnknownType = errors.New("unknown type")
)

// Execution errors, raised while a rule's guard, conditions or logic run.
var (
	// ErrMissingLogic indicates a rule was executed without any logic set.
	ErrMissingLogic = errors.New("no execution logic provided for rule")

	// ErrUnknownCondition indicates a condition name that is neither a built-in
	// helper nor defined on the rule.
	ErrUnknownCondition = errors.New("unknown condition")

	// ErrConditionDepth indicates conditions calling each other deeper than
	// MaxConditionDepth.
	ErrConditionDepth = errors.New("condition nesting too deep")
)

// State errors.
var (
	// ErrImmutableState indicates a mutation while the state is read-only.
	ErrImmutableState = errors.New("state is not mutable")

	// ErrDuplicateKey indicates Add was called for a key that is already present.
	ErrDuplicateKey = errors.New("state already has item")

	// ErrMissingItem indicates a required item is not present in the state.
	ErrMissingItem = errors.New("state has no item")
)

// Load and engine errors.
var (
	// ErrDuplicateRuleName indicates two rules with the same name on the search path.
	ErrDuplicateRuleName = errors.New("duplicate rule name")

	// ErrUnreadableRule indicates a rule file was found but could not be read.
	ErrUnreadableRule = errors.New("rule is not readable")

	// ErrNoRulesLoaded indicates a pass was requested with an empty rule set.
	ErrNoRulesLoaded = errors.New("no rules have been loaded")

	// ErrNilLogger indicates the engine was constructed without a logger.
	ErrNilLogger = errors.New("logger cannot be nil")

	// ErrNilSource indicates the engine was constructed without a rule source.
	ErrNilSource = errors.New("rule source cannot be nil")

	// ErrInvalidConfig indicates invalid engine configuration.
	ErrInvalidConfig = errors.New("invalid engine configuration")
)

// Execution phases reported on ExecutionError.
const (
	PhaseGuard     = "guard"
	PhaseCondition = "condition"
	PhaseLogic     = "logic"
)

// DefinitionError is returned by the rule builder when a definition is invalid.
// These errors are fatal and are meant to abort startup.
type DefinitionError struct {
	// Rule is the name of the rule being defined.
	Rule string

	// Field is the builder element that was rejected (e.g. "priority").
	Field string

	// Cause is the underlying sentinel error.
	Cause error
}

// Error returns the error message.
func (e *DefinitionError) Error() string {
	return fmt.Sprintf("rule %q: invalid %s: %v", e.Rule, e.Field, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *DefinitionError) Unwrap() error {
	return e.Cause
}

// LoadError indicates a rule source could not be loaded. Load errors abort
// engine construction.
type LoadError struct {
	// FilePath is the source unit that failed, if any.
	FilePath string

	// Message describes the error.
	Message string

	// Cause is the underlying error.
	Cause error
}

// Error returns the error message.
func (e *LoadError) Error() string {
	if e.FilePath == "" {
		return fmt.Sprintf("failed to load rules: %s: %v", e.Message, e.Cause)
	}
	if e.Cause != nil {
		return fmt.Sprintf("failed to load rule %q: %s: %v", e.FilePath, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load rule %q: %s", e.FilePath, e.Message)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// ExecutionError wraps any failure raised by a rule's guard, one of its
// conditions, or its logic.
type ExecutionError struct {
	// Rule is the name of the failing rule.
	Rule string

	// Phase is one of PhaseGuard, PhaseCondition or PhaseLogic.
	Phase string

	// Location is the first failure location known for the error, either a
	// "file:line" frame or the rule's source file.
	Location string

	// Cause is the underlying failure.
	Cause error
}

// Error returns the error message.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("rule %q: %s failed: %v", e.Rule, e.Phase, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// StateError is returned by State operations that are not permitted.
type StateError struct {
	// Op is the attempted operation ("set", "add", "delete", "fetch").
	Op string

	// Key is the item key involved.
	Key string

	// Cause is the underlying sentinel error.
	Cause error
}

// Error returns the error message.
func (e *StateError) Error() string {
	return fmt.Sprintf("state %s %q: %v", e.Op, e.Key, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StateError) Unwrap() error {
	return e.Cause
}

// EngineError is returned by Engine operations.
type EngineError struct {
	Message string
	Cause   error
}

// Error returns the error message.
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("engine: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("engine: %s", e.Message)
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// locatable is implemented by errors that know where they were raised,
// such as rule file step errors.
type locatable interface {
	Location() string
}
