package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
)

// Built-in helper names callable through Evaluator.Condition.
const (
	ConditionFirstRun         = "first_run"
	ConditionStateHadFailures = "state_had_failures"
	ConditionStateProcessedBy = "state_processed_by"
)

// MaxConditionDepth bounds how deeply rule-defined conditions may call one
// another within one evaluation.
const MaxConditionDepth = 64

var builtinConditions = map[string]func(ev *Evaluator, args []any) (bool, error){
	ConditionFirstRun: func(ev *Evaluator, _ []any) (bool, error) {
		return ev.FirstRun(), nil
	},
	ConditionStateHadFailures: func(ev *Evaluator, _ []any) (bool, error) {
		return ev.StateHadFailures(), nil
	},
	ConditionStateProcessedBy: func(ev *Evaluator, args []any) (bool, error) {
		if len(args) != 1 {
			return false, fmt.Errorf("%s takes 1 argument, got %d", ConditionStateProcessedBy, len(args))
		}
		return ev.StateProcessedBy(args[0]), nil
	},
}

// IsBuiltinCondition reports whether name is one of the built-in helpers.
func IsBuiltinCondition(name string) bool {
	_, ok := builtinConditions[name]
	return ok
}

// Evaluator binds one rule to one state for the duration of a single guard
// check or logic execution. Guards, conditions and logic receive it to read
// and write the state and to call conditions by name.
type Evaluator struct {
	rule     *Rule
	state    *State
	firstRun bool
	depth    int
}

func newEvaluator(rule *Rule, state *State) *Evaluator {
	return &Evaluator{
		rule:     rule,
		state:    state,
		firstRun: rule.runCount == 0,
	}
}

// Rule returns the rule being evaluated.
func (ev *Evaluator) Rule() *Rule { return ev.rule }

// State returns the state being processed.
func (ev *Evaluator) State() *State { return ev.state }

// Logger returns the logger of the rule being evaluated.
func (ev *Evaluator) Logger() *slog.Logger { return ev.rule.logger(ev.state) }

// FirstRun reports whether this is the rule's first execution in the
// current pass.
func (ev *Evaluator) FirstRun() bool { return ev.firstRun }

// StateHadFailures reports whether any rule that already ran in this pass
// recorded an error.
func (ev *Evaluator) StateHadFailures() bool { return ev.state.HadFailures() }

// StateProcessedBy reports whether a rule already acted on the state. ref
// is either a *Rule, matched by identity, or a rule name.
func (ev *Evaluator) StateProcessedBy(ref any) bool {
	switch r := ref.(type) {
	case *Rule:
		return ev.state.ProcessedBy(r)
	case string:
		return ev.state.ProcessedByName(r)
	default:
		return false
	}
}

// Condition evaluates a built-in helper or a condition defined on the rule.
// Unknown names fail with ErrUnknownCondition.
func (ev *Evaluator) Condition(name string, args ...any) (bool, error) {
	if builtin, ok := builtinConditions[name]; ok {
		result, err := builtin(ev, args)
		if err != nil {
			return false, ev.wrap(PhaseCondition, err)
		}
		return result, nil
	}

	fn, ok := ev.rule.conditions[name]
	if !ok {
		return false, ev.wrap(PhaseCondition, fmt.Errorf("%w: %s", ErrUnknownCondition, name))
	}

	if ev.depth >= MaxConditionDepth {
		return false, ev.wrap(PhaseCondition, fmt.Errorf("%w: %s", ErrConditionDepth, name))
	}
	ev.depth++
	result, err := ev.callCondition(fn, args)
	ev.depth--
	if err != nil {
		return false, err
	}

	ev.Logger().Debug("condition evaluated",
		"rule", ev.rule.name,
		"condition", name,
		"result", result,
	)
	return result, nil
}

func (ev *Evaluator) callCondition(fn ConditionFunc, args []any) (result bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = false
			err = ev.panicError(PhaseCondition, rec)
		}
	}()

	result, err = fn(ev, args...)
	if err != nil {
		return false, ev.wrap(PhaseCondition, err)
	}
	return result, nil
}

// shouldRun evaluates the rule guard.
func (ev *Evaluator) shouldRun() (ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			err = ev.panicError(PhaseGuard, rec)
		}
	}()

	ok, err = ev.rule.guard(ev)
	if err != nil {
		return false, ev.wrap(PhaseGuard, err)
	}
	return ok, nil
}

// execute runs the rule logic.
func (ev *Evaluator) execute() (output any, err error) {
	if ev.rule.logic == nil {
		return nil, ev.wrap(PhaseLogic, ErrMissingLogic)
	}

	defer func() {
		if rec := recover(); rec != nil {
			output = nil
			err = ev.panicError(PhaseLogic, rec)
		}
	}()

	output, err = ev.rule.logic(ev)
	if err != nil {
		return nil, ev.wrap(PhaseLogic, err)
	}
	return output, nil
}

// wrap turns err into an ExecutionError for this rule, keeping an existing
// ExecutionError raised by the same rule as is.
func (ev *Evaluator) wrap(phase string, err error) error {
	var execErr *ExecutionError
	if errors.As(err, &execErr) && execErr.Rule == ev.rule.name {
		return err
	}

	location := ev.rule.file
	var loc locatable
	if errors.As(err, &loc) && loc.Location() != "" {
		location = loc.Location()
	}

	return &ExecutionError{
		Rule:     ev.rule.name,
		Phase:    phase,
		Location: location,
		Cause:    err,
	}
}

func (ev *Evaluator) panicError(phase string, rec any) error {
	cause, ok := rec.(error)
	if !ok {
		cause = fmt.Errorf("%v", rec)
	}

	location := panicLocation()
	if location == "" {
		location = ev.rule.file
	}

	return &ExecutionError{
		Rule:     ev.rule.name,
		Phase:    phase,
		Location: location,
		Cause:    fmt.Errorf("panic: %w", cause),
	}
}

// panicLocation returns the "file:line" of the frame that panicked. It must
// be called from a deferred recover.
func panicLocation() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	panicking := false
	for {
		frame, more := frames.Next()
		if panicking && !strings.HasPrefix(frame.Function, "runtime.") {
			return fmt.Sprintf("%s:%d", frame.File, frame.Line)
		}
		if frame.Function == "runtime.gopanic" {
			panicking = true
		}
		if !more {
			return ""
		}
	}
}

// failureLocation returns the first failure location recorded on err.
func failureLocation(err error, fallback string) string {
	var execErr *ExecutionError
	if errors.As(err, &execErr) && execErr.Location != "" {
		return execErr.Location
	}
	return fallback
}
