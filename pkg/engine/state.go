package engine

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
)

var discardLogger = slog.New(slog.DiscardHandler)

// State is the shared context carried through one pass. It holds the items
// rules read and write, whether mutation is currently allowed, and the
// results of every rule that ran.
//
// State is not safe for concurrent use. The mutability flag is a
// cooperative guard for concurrency-safe rules, not a lock.
type State struct {
	id          string
	items       map[string]any
	mutable     bool
	results     []*Result
	processedBy []*Rule
	engine      *Engine
	logger      *slog.Logger
}

// NewState creates an empty, mutable state. Prefer Engine.CreateState; a
// nil logger discards all output.
func NewState(engine *Engine, logger *slog.Logger) *State {
	if logger == nil {
		logger = discardLogger
	}
	return &State{
		id:      uuid.New().String(),
		items:   make(map[string]any),
		mutable: true,
		engine:  engine,
		logger:  logger,
	}
}

// ID returns the unique identifier of the state, used to correlate log lines.
func (s *State) ID() string { return s.id }

// Engine returns the engine that created the state, if any.
func (s *State) Engine() *Engine { return s.engine }

// Logger returns the state logger.
func (s *State) Logger() *slog.Logger { return s.logger }

// Mutable reports whether the state can currently be modified.
func (s *State) Mutable() bool { return s.mutable }

// SetMutable sets the mutability flag.
func (s *State) SetMutable(mutable bool) { s.mutable = mutable }

// AllowMutation makes the state mutable.
func (s *State) AllowMutation() { s.mutable = true }

// PreventMutation makes the state read-only.
func (s *State) PreventMutation() { s.mutable = false }

// Set stores value at key, replacing any previous value.
func (s *State) Set(key string, value any) error {
	if !s.mutable {
		return &StateError{Op: "set", Key: key, Cause: ErrImmutableState}
	}
	s.items[key] = value
	return nil
}

// Add stores value at key. It fails when key is already present.
func (s *State) Add(key string, value any) error {
	if !s.mutable {
		return &StateError{Op: "add", Key: key, Cause: ErrImmutableState}
	}
	if _, exists := s.items[key]; exists {
		return &StateError{Op: "add", Key: key, Cause: ErrDuplicateKey}
	}
	s.items[key] = value
	return nil
}

// Delete removes key and returns the value it held, if any.
func (s *State) Delete(key string) (any, error) {
	if !s.mutable {
		return nil, &StateError{Op: "delete", Key: key, Cause: ErrImmutableState}
	}
	value := s.items[key]
	delete(s.items, key)
	return value, nil
}

// Get returns the item at key. Lookups are allowed regardless of mutability.
func (s *State) Get(key string) (any, bool) {
	value, ok := s.items[key]
	return value, ok
}

// Fetch returns the item at key or ErrMissingItem when it is absent.
func (s *State) Fetch(key string) (any, error) {
	value, ok := s.items[key]
	if !ok {
		return nil, &StateError{Op: "fetch", Key: key, Cause: ErrMissingItem}
	}
	return value, nil
}

// Has reports whether key is present.
func (s *State) Has(key string) bool {
	_, ok := s.items[key]
	return ok
}

// Len returns the number of items.
func (s *State) Len() int { return len(s.items) }

// Keys returns the item keys in sorted order.
func (s *State) Keys() []string {
	keys := make([]string, 0, len(s.items))
	for key := range s.items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a shallow copy of the items.
func (s *State) Snapshot() map[string]any {
	out := make(map[string]any, len(s.items))
	for key, value := range s.items {
		out[key] = value
	}
	return out
}

// ItemsOfType returns every item whose value matches t.
func (s *State) ItemsOfType(t Type) map[string]any {
	out := make(map[string]any)
	for key, value := range s.items {
		if t.Match(value) {
			out[key] = value
		}
	}
	return out
}

// HasItemOfType reports whether any item matches t.
func (s *State) HasItemOfType(t Type) bool {
	for _, value := range s.items {
		if t.Match(value) {
			return true
		}
	}
	return false
}

// MeetsRequirement checks one requirement and returns a reason describing
// the outcome. A named requirement must find a matching value at its key;
// every requirement also needs at least one item of its type in the state.
func (s *State) MeetsRequirement(req Requirement) (bool, string) {
	if req.Named() {
		value, ok := s.items[req.Key]
		if !ok {
			return false, fmt.Sprintf("state has no item %s", req.Key)
		}
		if !req.Type.Match(value) {
			return false, fmt.Sprintf("state item %s is not a %s", req.Key, req.Type.Name())
		}
	}

	if !s.HasItemOfType(req.Type) {
		return false, fmt.Sprintf("state has no items of type %s", req.Type.Name())
	}

	return true, "valid state found"
}

// Results returns the results recorded so far, in execution order.
func (s *State) Results() []*Result {
	out := make([]*Result, len(s.results))
	copy(out, s.results)
	return out
}

// EachResult calls fn for every recorded result in execution order.
func (s *State) EachResult(fn func(*Result)) {
	for _, result := range s.results {
		fn(result)
	}
}

// ProcessedRules returns the rules that acted on the state, in execution order.
func (s *State) ProcessedRules() []*Rule {
	out := make([]*Rule, len(s.processedBy))
	copy(out, s.processedBy)
	return out
}

// HadFailures reports whether any recorded result has an error.
func (s *State) HadFailures() bool {
	for _, result := range s.results {
		if result.HasError() {
			return true
		}
	}
	return false
}

// ProcessedBy reports whether rule acted on the state.
func (s *State) ProcessedBy(rule *Rule) bool {
	for _, r := range s.processedBy {
		if r == rule {
			return true
		}
	}
	return false
}

// ProcessedByName reports whether a rule named name acted on the state.
func (s *State) ProcessedByName(name string) bool {
	for _, r := range s.processedBy {
		if r.Name() == name {
			return true
		}
	}
	return false
}

// ProcessRule runs rule against the state. Concurrency-safe rules see a
// read-only state; mutation is allowed again afterwards regardless of the
// outcome. The rule and its result are recorded only when the rule ran.
func (s *State) ProcessRule(rule *Rule) (*Result, error) {
	if rule.ConcurrentSafe() {
		s.PreventMutation()
	} else {
		s.AllowMutation()
	}

	result, err := rule.Process(s)
	s.AllowMutation()

	if err != nil {
		return nil, err
	}
	return s.record(rule, result), nil
}

// record stores rule and result when the rule ran and returns result.
func (s *State) record(rule *Rule, result *Result) *Result {
	if result == nil {
		return nil
	}
	s.processedBy = append(s.processedBy, rule)
	s.results = append(s.results, result)
	return result
}

func (s *State) observer() Observer {
	if s.engine == nil || s.engine.observer == nil {
		return nopObserver{}
	}
	return s.engine.observer
}
