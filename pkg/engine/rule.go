package engine

import (
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Concurrency is the concurrency safety level of a rule. It only controls
// whether the state may be mutated while the rule runs; rules always run
// one at a time.
type Concurrency string

const (
	// ConcurrencySafe rules see a read-only state.
	ConcurrencySafe Concurrency = "safe"

	// ConcurrencyUnsafe rules may mutate the state. This is the default.
	ConcurrencyUnsafe Concurrency = "unsafe"
)

// DefaultPriority is the priority of a rule that never sets one.
const DefaultPriority = 50

// ParseConcurrency converts "safe" or "unsafe" (case-insensitive) into a
// Concurrency value.
func ParseConcurrency(s string) (Concurrency, error) {
	switch Concurrency(strings.ToLower(strings.TrimSpace(s))) {
	case ConcurrencySafe:
		return ConcurrencySafe, nil
	case ConcurrencyUnsafe:
		return ConcurrencyUnsafe, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInvalidConcurrencyMode, s)
	}
}

// GuardFunc decides whether a rule runs once its requirements are met.
type GuardFunc func(ev *Evaluator) (bool, error)

// ConditionFunc is a named predicate attached to a rule.
type ConditionFunc func(ev *Evaluator, args ...any) (bool, error)

// LogicFunc is the main body of a rule. The returned value becomes the
// Output of the rule's Result.
type LogicFunc func(ev *Evaluator) (any, error)

// Requirement is a (key, type) pair the state must satisfy before the rule
// guard is even evaluated. An empty Key means "some item of Type exists".
type Requirement struct {
	Key  string
	Type Type
}

// Named reports whether the requirement pins a specific key.
func (r Requirement) Named() bool {
	return r.Key != ""
}

// String returns "key:Type" or "Type".
func (r Requirement) String() string {
	if r.Named() {
		return r.Key + ":" + r.Type.Name()
	}
	return r.Type.Name()
}

// Rule is a named, prioritized unit of requirements, conditions, a guard
// and logic. Rules are built once and then run by an Engine in priority
// order; the state a rule processes is bound to it only for the duration
// of one Process call.
type Rule struct {
	name         string
	priority     int
	concurrency  Concurrency
	requirements []Requirement
	conditions   map[string]ConditionFunc
	guard        GuardFunc
	logic        LogicFunc
	runCount     int
	file         string
	log          *slog.Logger
	sealed       bool

	// state is only set while Process runs.
	state *State
}

// NewRule creates a rule with default priority, unsafe concurrency and a
// guard that always passes. Executing it fails with ErrMissingLogic until
// Run is called.
func NewRule(name string) *Rule {
	return &Rule{
		name:        name,
		priority:    DefaultPriority,
		concurrency: ConcurrencyUnsafe,
		conditions:  make(map[string]ConditionFunc),
		guard:       alwaysRun,
		file:        "unknown file",
	}
}

// Define creates a rule and passes it to build. Any error from build is
// returned and the rule is discarded.
//
//	rule, err := engine.Define("answer", func(r *engine.Rule) error {
//		if err := r.Requirement("v_1", engine.Integer); err != nil {
//			return err
//		}
//		return r.Run(func(ev *engine.Evaluator) (any, error) { ... })
//	})
func Define(name string, build func(r *Rule) error) (*Rule, error) {
	rule := NewRule(name)
	if build != nil {
		if err := build(rule); err != nil {
			return nil, err
		}
	}
	return rule, nil
}

func alwaysRun(*Evaluator) (bool, error) { return true, nil }

// Name returns the rule name.
func (r *Rule) Name() string { return r.name }

// Priority returns the rule priority. Lower values run earlier.
func (r *Rule) Priority() int { return r.priority }

// Concurrency returns the concurrency level.
func (r *Rule) Concurrency() Concurrency { return r.concurrency }

// ConcurrentSafe reports whether the rule is marked safe.
func (r *Rule) ConcurrentSafe() bool { return r.concurrency == ConcurrencySafe }

// RunCount returns how many times the rule executed in the current pass.
func (r *Rule) RunCount() int { return r.runCount }

// ResetCounter sets the run count back to zero.
func (r *Rule) ResetCounter() { r.runCount = 0 }

// File returns the source unit the rule was loaded from.
func (r *Rule) File() string { return r.file }

// SetFile records the source unit the rule was loaded from.
func (r *Rule) SetFile(file string) { r.file = file }

// SetLogger sets the logger used by the rule. When unset, the logger of
// the state being processed is used.
func (r *Rule) SetLogger(logger *slog.Logger) { r.log = logger }

// State returns the state bound to the rule, which is only non-nil while
// Process is running.
func (r *Rule) State() *State { return r.state }

// Requirements returns a copy of the declared requirements.
func (r *Rule) Requirements() []Requirement {
	out := make([]Requirement, len(r.requirements))
	copy(out, r.requirements)
	return out
}

// HasCondition reports whether a condition named name is defined.
func (r *Rule) HasCondition(name string) bool {
	_, ok := r.conditions[name]
	return ok
}

// ConditionNames returns the defined condition names, sorted.
func (r *Rule) ConditionNames() []string {
	names := make([]string, 0, len(r.conditions))
	for name := range r.conditions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasLogic reports whether Run was called.
func (r *Rule) HasLogic() bool { return r.logic != nil }

// Requirement declares a state requirement. Called with a single Type the
// requirement is satisfied by any item of that type; called with a key and
// a Type the item at key must also be of that type.
func (r *Rule) Requirement(args ...any) error {
	switch len(args) {
	case 1:
		t, ok := args[0].(Type)
		if !ok || t == nil {
			return r.definitionError("requirement", fmt.Errorf("%w: %T is not a type", ErrInvalidRequirement, args[0]))
		}
		r.requirements = append(r.requirements, Requirement{Type: t})

	case 2:
		key, ok := args[0].(string)
		if !ok || key == "" {
			return r.definitionError("requirement", fmt.Errorf("%w: key must be a non-empty string, got %#v", ErrInvalidRequirement, args[0]))
		}
		t, ok := args[1].(Type)
		if !ok || t == nil {
			return r.definitionError("requirement", fmt.Errorf("%w: %T is not a type", ErrInvalidRequirement, args[1]))
		}
		r.requirements = append(r.requirements, Requirement{Key: key, Type: t})

	default:
		return r.definitionError("requirement", fmt.Errorf("%w: got %d arguments", ErrInvalidRequirementArity, len(args)))
	}
	return nil
}

// Condition defines a named condition that the guard and the logic can
// call through the Evaluator.
func (r *Rule) Condition(name string, fn ConditionFunc) error {
	if IsBuiltinCondition(name) {
		return r.definitionError("condition", fmt.Errorf("%w: %s", ErrReservedCondition, name))
	}
	if _, exists := r.conditions[name]; exists {
		return r.definitionError("condition", fmt.Errorf("%w: %s", ErrDuplicateCondition, name))
	}
	if fn == nil {
		return r.definitionError("condition", fmt.Errorf("%w for condition %s", ErrMissingBlock, name))
	}

	r.conditions[name] = fn
	return nil
}

// RunWhen sets the guard deciding whether the rule runs.
func (r *Rule) RunWhen(fn GuardFunc) error {
	if fn == nil {
		return r.definitionError("run_when", fmt.Errorf("%w to evaluate for run_when", ErrMissingBlock))
	}
	r.guard = fn
	return nil
}

// Run sets the rule logic.
func (r *Rule) Run(fn LogicFunc) error {
	if fn == nil {
		return r.definitionError("run", fmt.Errorf("%w to run", ErrMissingBlock))
	}
	r.logic = fn
	return nil
}

// SetPriority sets the priority, coercing integers, floats and numeric
// strings. Floats are truncated toward zero, so 12.9 becomes 12. Priorities
// cannot change once the rule has been added to a RuleSet.
func (r *Rule) SetPriority(value any) error {
	if r.sealed {
		return r.definitionError("priority", ErrRuleSealed)
	}

	priority, err := coercePriority(value)
	if err != nil {
		return r.definitionError("priority", err)
	}
	r.priority = priority
	return nil
}

// SetConcurrency sets the concurrency level.
func (r *Rule) SetConcurrency(mode Concurrency) error {
	switch mode {
	case ConcurrencySafe, ConcurrencyUnsafe:
		r.concurrency = mode
		return nil
	default:
		return r.definitionError("concurrency", fmt.Errorf("%w: got %q", ErrInvalidConcurrencyMode, mode))
	}
}

// StateMeetsRequirements checks the requirements in declaration order and
// stops at the first one the state does not meet.
func (r *Rule) StateMeetsRequirements(state *State) bool {
	ok, reason := r.checkRequirements(state)
	if !ok {
		r.logger(state).Debug("state does not meet the requirements",
			"rule", r.name,
			"reason", reason,
		)
	}
	return ok
}

func (r *Rule) checkRequirements(state *State) (bool, string) {
	for _, req := range r.requirements {
		if ok, reason := state.MeetsRequirement(req); !ok {
			return false, reason
		}
	}
	return true, ""
}

// SatisfiesGuard evaluates the guard against state. Errors raised by the
// guard, or by conditions it calls, are returned as *ExecutionError.
func (r *Rule) SatisfiesGuard(state *State) (bool, error) {
	return newEvaluator(r, state).shouldRun()
}

// Process runs the rule against state: requirements first, then the guard,
// then the logic. It returns nil when the rule did not run. Failures of the
// logic are captured on the Result; guard failures are returned.
func (r *Rule) Process(state *State) (*Result, error) {
	release := r.bind(state)
	defer release()

	log := r.logger(state)
	obs := state.observer()

	if ok, reason := r.checkRequirements(state); !ok {
		log.Debug("skipping rule due to state check failing",
			"rule", r.name,
			"reason", reason,
			"state_id", state.ID(),
		)
		obs.RuleSkipped(r, state, SkipRequirements)
		return nil, nil
	}

	ok, err := r.SatisfiesGuard(state)
	if err != nil {
		log.Error("run_when evaluation failed",
			"rule", r.name,
			"error", err,
			"state_id", state.ID(),
		)
		return nil, err
	}
	if !ok {
		log.Debug("skipping rule due to run_when returning false",
			"rule", r.name,
			"state_id", state.ID(),
		)
		obs.RuleSkipped(r, state, SkipGuard)
		return nil, nil
	}

	log.Debug("processing rule", "rule", r.name, "state_id", state.ID())

	result := r.runLogic(state)
	obs.RuleExecuted(result, state)
	return result, nil
}

func (r *Rule) runLogic(state *State) *Result {
	// The evaluator snapshots the run count before it is incremented.
	ev := newEvaluator(r, state)
	r.runCount++

	result := newResult(r)
	result.start()
	output, err := ev.execute()
	result.stop()

	if err != nil {
		log := r.logger(state)
		log.Error("error during processing of rule",
			"rule", r.name,
			"error", err,
			"state_id", state.ID(),
		)
		log.Debug("rule failure location",
			"rule", r.name,
			"location", failureLocation(err, r.file),
		)
		result.Err = err
		return result
	}

	result.Output = output
	return result
}

// bind attaches state to the rule and returns the function that releases it.
func (r *Rule) bind(state *State) func() {
	prev := r.state
	r.state = state
	return func() {
		r.state = prev
	}
}

func (r *Rule) logger(state *State) *slog.Logger {
	if r.log != nil {
		return r.log
	}
	if state != nil {
		return state.Logger()
	}
	return discardLogger
}

func (r *Rule) definitionError(field string, cause error) error {
	return &DefinitionError{Rule: r.name, Field: field, Cause: cause}
}

// String returns a short diagnostic representation.
func (r *Rule) String() string {
	return fmt.Sprintf("rule(%s) priority=%d runs=%d @ %s", r.name, r.priority, r.runCount, r.file)
}

func coercePriority(value any) (int, error) {
	if value == nil {
		return 0, fmt.Errorf("%w: got nil", ErrInvalidPriority)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt {
			return 0, fmt.Errorf("%w: %d overflows int", ErrInvalidPriority, u)
		}
		return int(u), nil

	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt || f < math.MinInt {
			return 0, fmt.Errorf("%w: got %v", ErrInvalidPriority, f)
		}
		return int(f), nil

	case reflect.String:
		i, err := strconv.Atoi(strings.TrimSpace(rv.String()))
		if err != nil {
			return 0, fmt.Errorf("%w: got %q", ErrInvalidPriority, rv.String())
		}
		return i, nil
	}

	return 0, fmt.Errorf("%w: got %T", ErrInvalidPriority, value)
}
