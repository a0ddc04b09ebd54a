package rulefile

import (
	"fmt"

	"github.com/expr-lang/expr"

	"mercator-hq/rulekeeper/pkg/engine"
)

// newEnv builds the expression environment for one evaluation. With a nil
// evaluator it returns a prototype carrying the same names and types, used
// at compile time.
func newEnv(ev *engine.Evaluator, conditions []string, args []any) map[string]any {
	state := map[string]any{}
	if ev != nil {
		state = ev.State().Snapshot()
	}
	if args == nil {
		args = []any{}
	}

	env := map[string]any{
		envState: state,
		envArgs:  args,
		envHas: func(key string) bool {
			return ev.State().Has(key)
		},
		engine.ConditionFirstRun: func() bool {
			return ev.FirstRun()
		},
		engine.ConditionStateHadFailures: func() bool {
			return ev.StateHadFailures()
		},
		engine.ConditionStateProcessedBy: func(name string) bool {
			return ev.StateProcessedBy(name)
		},
	}

	for _, name := range conditions {
		env[name] = func(args ...any) (bool, error) {
			return ev.Condition(name, args...)
		}
	}

	return env
}

// eval runs a compiled expression against the current state.
func (p *program) eval(ce *compiledExpr, ev *engine.Evaluator, args []any) (any, error) {
	out, err := expr.Run(ce.prog, newEnv(ev, p.conditions, args))
	if err != nil {
		return nil, &StepError{File: p.file, Line: ce.line, Field: ce.field, Cause: err}
	}
	return out, nil
}

func (p *program) condition(ce *compiledExpr) engine.ConditionFunc {
	return func(ev *engine.Evaluator, args ...any) (bool, error) {
		out, err := p.eval(ce, ev, args)
		if err != nil {
			return false, err
		}
		return truthy(out), nil
	}
}

func (p *program) guard(ce *compiledExpr) engine.GuardFunc {
	return func(ev *engine.Evaluator) (bool, error) {
		out, err := p.eval(ce, ev, nil)
		if err != nil {
			return false, err
		}
		return truthy(out), nil
	}
}

// logic applies the run steps in order and then evaluates the output
// expression, if any.
func (p *program) logic(ev *engine.Evaluator) (any, error) {
	state := ev.State()

	for _, s := range p.steps {
		if s.when != nil {
			ok, err := p.eval(s.when, ev, nil)
			if err != nil {
				return nil, err
			}
			if !truthy(ok) {
				continue
			}
		}

		var value any
		if s.value != nil {
			v, err := p.eval(s.value, ev, nil)
			if err != nil {
				return nil, err
			}
			value = v
		}

		var err error
		switch s.action {
		case actionSet:
			err = state.Set(s.key, value)
		case actionAdd:
			err = state.Add(s.key, value)
		case actionDelete:
			_, err = state.Delete(s.key)
		case actionLog:
			ev.Logger().Info("rule log",
				"rule", ev.Rule().Name(),
				"message", fmt.Sprint(value),
				"state_id", state.ID(),
			)
		case actionFail:
			err = fmt.Errorf("%w: %v", ErrRuleFailed, value)
		}

		if err != nil {
			return nil, &StepError{File: p.file, Line: s.line, Field: string(s.action), Cause: err}
		}
	}

	if p.output != nil {
		return p.eval(p.output, ev, nil)
	}
	return nil, nil
}

// truthy converts an expression result to a boolean: nil and false are
// false, every other value is true.
func truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	default:
		return true
	}
}
