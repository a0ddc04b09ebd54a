// Package rulefile compiles YAML rule documents into engine rules.
//
// Each file holds exactly one rule. Guards, conditions, step values and the
// output are expr-lang expressions compiled when the file is loaded, so
// syntax errors and references to unknown conditions are reported as
// definition errors with the line of the offending expression.
//
// # Format
//
//	rule: answer_calculator
//	priority: 10
//	concurrency: unsafe
//	requirements:
//	  - [Integer]            # some Integer somewhere in the state
//	  - [v_1, Integer]       # v_1 must hold an Integer
//	conditions:
//	  small: "state.v_1 < 10"
//	  above: "args[0] > 5"
//	run_when: "small() && !state_had_failures()"
//	run:
//	  - set: answer
//	    value: "state.v_1 + state.v_2"
//	  - add: note
//	    value: "'first'"
//	    when: "first_run()"
//	  - delete: scratch
//	  - log: "'computed'"
//	output: "state.answer"
//
// # Expression Environment
//
// Every expression sees:
//
//	state                   snapshot of the state items
//	args                    arguments passed to a condition
//	has(key)                whether the state holds key
//	first_run()             first execution of the rule in this pass
//	state_had_failures()    whether an earlier rule in this pass failed
//	state_processed_by(n)   whether rule n already ran in this pass
//	<condition>(args...)    every condition defined by the rule
//
// Steps run in order against the live state, so each expression sees the
// writes of the steps before it. A fail step aborts the rule with
// ErrRuleFailed. A document with neither run nor output has no logic and
// fails with engine.ErrMissingLogic when it executes.
package rulefile
