// Package engine provides a sequential rule evaluation engine. Independently
// authored rules, each guarded by requirements and boolean conditions, run in
// priority order against one shared mutable State, producing a per-rule
// Result log that survives individual rule failures.
//
// # Architecture
//
// The package is built from a few small types:
//
//  1. Rule - a named, prioritized unit of requirements, conditions, a guard and logic
//  2. Evaluator - a short-lived binding of one rule to one state, used by guards, conditions and logic
//  3. RuleSet - an ordered, uniquely named collection of rules
//  4. State - the key/value context of a pass, its mutability flag and its result log
//  5. Engine - owns a RuleSet, loaded once from a RuleSource, and drives passes
//
// # Pass Flow
//
//	Engine.ProcessState(state)
//	       ↓
//	reset every rule's run counter
//	       ↓
//	For each rule in priority order (stable, ascending):
//	  State.ProcessRule(rule)
//	    concurrency safe?  → state is read-only for this rule
//	    requirements met?  No → skip (no result)
//	    run_when guard?    false → skip (no result), error → abort pass
//	    run logic          → Result{Output} or Result{Err}
//	    record rule + result, state becomes mutable again
//	       ↓
//	return state.Results()
//
// # Basic Usage
//
//	rule, err := engine.Define("double", func(r *engine.Rule) error {
//	    if err := r.Requirement("x", engine.Integer); err != nil {
//	        return err
//	    }
//	    return r.Run(func(ev *engine.Evaluator) (any, error) {
//	        x, _ := ev.State().Get("x")
//	        return nil, ev.State().Set("y", x.(int)*2)
//	    })
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	eng, err := engine.New(nil, engine.StaticSource(rule), logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	state := eng.CreateState()
//	_ = state.Set("x", 21)
//	results, err := eng.ProcessState(state)
//
// # Failure Handling
//
// Errors and panics raised by a rule's logic are captured on its Result as
// an *ExecutionError; the pass continues with the next rule. Errors raised
// while evaluating a guard, including unknown conditions, are returned from
// ProcessState and abort the pass. Definition problems are reported by the
// builder methods as *DefinitionError, and source problems by New as
// *LoadError.
//
// # Mutation Gating
//
// Rules marked ConcurrencySafe see a read-only state: Set, Add and Delete
// fail with ErrImmutableState while they run. ConcurrencyUnsafe, the default,
// allows mutation. Rules always run one at a time; the flag is not a lock.
//
// # Types
//
// Requirements match state values through the Type interface. The built-in
// types include Integer and Float, both subtypes of Numeric, so a Numeric
// requirement accepts either. TypeOf[T] matches arbitrary Go types, and a
// TypeRegistry resolves type names used by rule files.
package engine
