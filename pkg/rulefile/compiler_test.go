package rulefile

import (
	"errors"
	"log/slog"
	"strings"
	"testing"

	"mercator-hq/rulekeeper/pkg/engine"
)

const answerRule = `
rule: answer_calculator
priority: 10
concurrency: unsafe
requirements:
  - [Integer]
  - [v_1, Integer]
conditions:
  small: "state.v_1 < 10"
run_when: "small() && !state_had_failures()"
run:
  - set: answer
    value: "state.v_1 + state.v_2"
  - add: note
    value: "'first'"
    when: "first_run()"
  - delete: scratch
  - log: "'computed ' + string(state.answer)"
output: "state.answer"
`

func runOnce(t *testing.T, rules []*engine.Rule, seed map[string]any) (*engine.State, []*engine.Result) {
	t.Helper()

	eng, err := engine.New(nil, engine.StaticSource(rules...), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("engine.New() error = %v, want nil", err)
	}

	state := eng.CreateState()
	for k, v := range seed {
		if err := state.Set(k, v); err != nil {
			t.Fatalf("Set(%s) error = %v, want nil", k, err)
		}
	}

	results, err := eng.ProcessState(state)
	if err != nil {
		t.Fatalf("ProcessState() error = %v, want nil", err)
	}
	return state, results
}

func compile(t *testing.T, src, file string) *engine.Rule {
	t.Helper()

	rule, err := NewCompiler(nil).Compile([]byte(src), file)
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	return rule
}

func TestCompile_AnswerRule(t *testing.T) {
	rule := compile(t, answerRule, "answer_rule.yaml")

	if rule.Name() != "answer_calculator" {
		t.Errorf("Name() = %q, want %q", rule.Name(), "answer_calculator")
	}
	if rule.Priority() != 10 {
		t.Errorf("Priority() = %d, want 10", rule.Priority())
	}
	if len(rule.Requirements()) != 2 {
		t.Errorf("len(Requirements()) = %d, want 2", len(rule.Requirements()))
	}
	if !rule.HasCondition("small") || !rule.HasLogic() {
		t.Errorf("HasCondition(small) = %v, HasLogic() = %v, want true, true", rule.HasCondition("small"), rule.HasLogic())
	}
	if rule.File() != "answer_rule.yaml" {
		t.Errorf("File() = %q, want %q", rule.File(), "answer_rule.yaml")
	}

	state, results := runOnce(t, []*engine.Rule{rule}, map[string]any{"v_1": 3, "v_2": 4, "scratch": true})

	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("results[0].Err = %v, want nil", results[0].Err)
	}
	if results[0].Output != 7 {
		t.Errorf("results[0].Output = %v, want 7", results[0].Output)
	}
	if v, _ := state.Get("note"); v != "first" {
		t.Errorf("state[note] = %v, want first", v)
	}
	if state.Has("scratch") {
		t.Error("state still has scratch after delete step")
	}
}

func TestCompile_GuardAndRequirementsSkip(t *testing.T) {
	tests := []struct {
		name string
		seed map[string]any
	}{
		{name: "guard false", seed: map[string]any{"v_1": 30, "v_2": 4}},
		{name: "wrong type", seed: map[string]any{"v_1": "3", "v_2": 4}},
		{name: "missing key", seed: map[string]any{"v_2": 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := compile(t, answerRule, "answer_rule.yaml")
			state, results := runOnce(t, []*engine.Rule{rule}, tt.seed)

			if len(results) != 0 {
				t.Errorf("len(results) = %d, want 0", len(results))
			}
			if state.Has("answer") {
				t.Error("state has answer, want rule skipped")
			}
		})
	}
}

func TestCompile_ConditionArguments(t *testing.T) {
	rule := compile(t, `
rule: threshold
conditions:
  above: "args[0] > 5"
run_when: "above(state.n)"
output: "'over'"
`, "threshold_rule.yaml")

	_, results := runOnce(t, []*engine.Rule{rule}, map[string]any{"n": 6})
	if len(results) != 1 || results[0].Output != "over" {
		t.Fatalf("results = %v, want one result with output over", results)
	}

	_, results = runOnce(t, []*engine.Rule{compile(t, `
rule: threshold
conditions:
  above: "args[0] > 5"
run_when: "above(state.n)"
output: "'over'"
`, "threshold_rule.yaml")}, map[string]any{"n": 5})
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
}

func TestCompile_FailStep(t *testing.T) {
	failing := compile(t, `
rule: failing
priority: 1
run:
  - set: before
    value: "1"
  - fail: "'boom'"
`, "failing_rule.yaml")
	after := compile(t, `
rule: after
priority: 2
run_when: "state_had_failures() && state_processed_by('failing')"
output: "'recovered'"
`, "after_rule.yaml")

	_, results := runOnce(t, []*engine.Rule{after, failing}, nil)

	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if !errors.Is(results[0].Err, ErrRuleFailed) {
		t.Fatalf("results[0].Err = %v, want %v", results[0].Err, ErrRuleFailed)
	}
	if !strings.Contains(results[0].Err.Error(), "boom") {
		t.Errorf("results[0].Err = %q, want message boom", results[0].Err)
	}

	var execErr *engine.ExecutionError
	if !errors.As(results[0].Err, &execErr) {
		t.Fatalf("results[0].Err type = %T, want *engine.ExecutionError", results[0].Err)
	}
	if execErr.Location != "failing_rule.yaml:7" {
		t.Errorf("Location = %q, want %q", execErr.Location, "failing_rule.yaml:7")
	}
	if results[1].Output != "recovered" {
		t.Errorf("results[1].Output = %v, want recovered", results[1].Output)
	}
}

func TestCompile_SafeRuleCannotMutate(t *testing.T) {
	rule := compile(t, `
rule: reader
concurrency: safe
run:
  - set: x
    value: "1"
`, "reader_rule.yaml")

	_, results := runOnce(t, []*engine.Rule{rule}, nil)
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if !errors.Is(results[0].Err, engine.ErrImmutableState) {
		t.Errorf("results[0].Err = %v, want %v", results[0].Err, engine.ErrImmutableState)
	}
}

func TestCompile_NoLogic(t *testing.T) {
	rule := compile(t, "rule: empty\n", "empty_rule.yaml")

	if rule.HasLogic() {
		t.Fatal("HasLogic() = true, want false")
	}

	_, results := runOnce(t, []*engine.Rule{rule}, nil)
	if len(results) != 1 || !errors.Is(results[0].Err, engine.ErrMissingLogic) {
		t.Errorf("results = %v, want one ErrMissingLogic result", results)
	}
}

func TestCompile_DefinitionErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{
			name:    "requirement arity",
			src:     "rule: r\nrequirements:\n  - [a, Integer, extra]\n",
			wantErr: engine.ErrInvalidRequirementArity,
		},
		{
			name:    "empty requirement",
			src:     "rule: r\nrequirements:\n  - []\n",
			wantErr: engine.ErrInvalidRequirementArity,
		},
		{
			name:    "unknown type",
			src:     "rule: r\nrequirements:\n  - [Widget]\n",
			wantErr: engine.ErrUnknownType,
		},
		{
			name:    "invalid priority",
			src:     "rule: r\npriority: high\n",
			wantErr: engine.ErrInvalidPriority,
		},
		{
			name:    "invalid concurrency",
			src:     "rule: r\nconcurrency: parallel\n",
			wantErr: engine.ErrInvalidConcurrencyMode,
		},
		{
			name:    "reserved condition",
			src:     "rule: r\nconditions:\n  state: \"true\"\n",
			wantErr: engine.ErrReservedCondition,
		},
		{
			name:    "builtin condition",
			src:     "rule: r\nconditions:\n  first_run: \"true\"\n",
			wantErr: engine.ErrReservedCondition,
		},
		{
			name:    "duplicate condition",
			src:     "rule: r\nconditions:\n  a: \"true\"\n  a: \"false\"\n",
			wantErr: engine.ErrDuplicateCondition,
		},
		{
			name:    "condition calls itself",
			src:     "rule: r\nconditions:\n  a: \"a()\"\nrun_when: \"a()\"\n",
			wantErr: ErrConditionCycle,
		},
		{
			name:    "conditions call each other",
			src:     "rule: r\nconditions:\n  a: \"b() || true\"\n  b: \"state.x > 1 && a()\"\n",
			wantErr: ErrConditionCycle,
		},
		{
			name:    "empty expression",
			src:     "rule: r\nrun_when: \"  \"\n",
			wantErr: ErrEmptyExpression,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := NewCompiler(nil).Compile([]byte(tt.src), "r_rule.yaml")
			if rule != nil {
				t.Errorf("Compile() rule = %v, want nil", rule)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Compile() error = %v, want %v", err, tt.wantErr)
			}

			var defErr *engine.DefinitionError
			if !errors.As(err, &defErr) {
				t.Errorf("Compile() error type = %T, want *engine.DefinitionError", err)
			}
		})
	}
}

func TestCompile_ExpressionErrorsCarryLine(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		wantLine int
	}{
		{name: "syntax", src: "rule: r\npriority: 1\nrun_when: \"state.x >\"\n", wantLine: 3},
		{name: "unknown condition", src: "rule: r\nrun_when: \"missing()\"\n", wantLine: 2},
		{name: "step value", src: "rule: r\nrun:\n  - set: a\n    value: \"1 +\"\n", wantLine: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCompiler(nil).Compile([]byte(tt.src), "r_rule.yaml")

			var compileErr *CompileError
			if !errors.As(err, &compileErr) {
				t.Fatalf("Compile() error = %v, want *CompileError", err)
			}
			if compileErr.Line != tt.wantLine {
				t.Errorf("CompileError.Line = %d, want %d", compileErr.Line, tt.wantLine)
			}
		})
	}
}

func TestCompile_DocumentErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{name: "empty", src: "", wantErr: ErrMissingName},
		{name: "no name", src: "priority: 1\n", wantErr: ErrMissingName},
		{name: "two documents", src: "rule: a\n---\nrule: b\n", wantErr: ErrMultipleDocuments},
		{name: "two actions", src: "rule: a\nrun:\n  - set: x\n    delete: y\n", wantErr: ErrInvalidStep},
		{name: "unknown step key", src: "rule: a\nrun:\n  - frobnicate: x\n", wantErr: ErrInvalidStep},
		{name: "delete with value", src: "rule: a\nrun:\n  - delete: x\n    value: \"1\"\n", wantErr: ErrInvalidStep},
		{name: "set without value", src: "rule: a\nrun:\n  - set: x\n", wantErr: ErrInvalidStep},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCompiler(nil).Compile([]byte(tt.src), "a_rule.yaml")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Compile() error = %v, want %v", err, tt.wantErr)
			}

			var loadErr *engine.LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("Compile() error type = %T, want *engine.LoadError", err)
			}
			if loadErr.FilePath != "a_rule.yaml" {
				t.Errorf("LoadError.FilePath = %q, want %q", loadErr.FilePath, "a_rule.yaml")
			}
		})
	}

	if _, err := NewCompiler(nil).Compile([]byte("rule: a\nunknown: 1\n"), "a_rule.yaml"); err == nil {
		t.Error("Compile() with unknown field error = nil, want error")
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{in: nil, want: false},
		{in: false, want: false},
		{in: true, want: true},
		{in: 0, want: true},
		{in: "", want: true},
	}

	for _, tt := range tests {
		if got := truthy(tt.in); got != tt.want {
			t.Errorf("truthy(%#v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
