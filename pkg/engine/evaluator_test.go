package engine

import (
	"errors"
	"testing"
)

func TestEvaluator_Condition(t *testing.T) {
	r := NewRule("conds")
	_ = r.Condition("above", func(ev *Evaluator, args ...any) (bool, error) {
		return args[0].(int) > 5, nil
	})
	_ = r.Condition("fails", func(*Evaluator, ...any) (bool, error) {
		return false, errors.New("condition failed")
	})
	_ = r.Condition("panics", func(*Evaluator, ...any) (bool, error) {
		panic("condition panic")
	})

	ev := newEvaluator(r, NewState(nil, nil))

	tests := []struct {
		name      string
		condition string
		args      []any
		want      bool
		wantErr   error
	}{
		{name: "true", condition: "above", args: []any{6}, want: true},
		{name: "false", condition: "above", args: []any{5}, want: false},
		{name: "unknown", condition: "nope", wantErr: ErrUnknownCondition},
		{name: "builtin arity", condition: ConditionStateProcessedBy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ev.Condition(tt.condition, tt.args...)
			if tt.name == "builtin arity" {
				if err == nil {
					t.Fatal("Condition() error = nil, want arity error")
				}
				return
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Condition() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Condition() error = %v, want nil", err)
			}
			if got != tt.want {
				t.Errorf("Condition(%s, %v) = %v, want %v", tt.condition, tt.args, got, tt.want)
			}
		})
	}

	for _, name := range []string{"fails", "panics"} {
		_, err := ev.Condition(name)
		var execErr *ExecutionError
		if !errors.As(err, &execErr) {
			t.Fatalf("Condition(%s) error type = %T, want *ExecutionError", name, err)
		}
		if execErr.Phase != PhaseCondition {
			t.Errorf("Condition(%s) phase = %q, want %q", name, execErr.Phase, PhaseCondition)
		}
	}
}

func TestEvaluator_FirstRun(t *testing.T) {
	var seen []bool
	r := NewRule("counter")
	_ = r.Run(func(ev *Evaluator) (any, error) {
		seen = append(seen, ev.FirstRun())
		return nil, nil
	})

	state := NewState(nil, nil)
	_, _ = r.Process(state)
	_, _ = r.Process(state)
	r.ResetCounter()
	_, _ = r.Process(state)

	want := []bool{true, false, true}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("FirstRun() on run %d = %v, want %v", i, seen[i], want[i])
		}
	}
	if r.RunCount() != 1 {
		t.Errorf("RunCount() = %d, want 1", r.RunCount())
	}
}

func TestEvaluator_StateProcessedBy(t *testing.T) {
	first := NewRule("first")
	_ = first.Run(func(*Evaluator) (any, error) { return nil, nil })

	state := NewState(nil, nil)
	_, _ = state.ProcessRule(first)

	ev := newEvaluator(NewRule("second"), state)

	tests := []struct {
		name string
		ref  any
		want bool
	}{
		{name: "rule identity", ref: first, want: true},
		{name: "other rule with same name", ref: NewRule("first"), want: false},
		{name: "name", ref: "first", want: true},
		{name: "unknown name", ref: "other", want: false},
		{name: "unsupported", ref: 42, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ev.StateProcessedBy(tt.ref); got != tt.want {
				t.Errorf("StateProcessedBy(%v) = %v, want %v", tt.ref, got, tt.want)
			}
		})
	}

	got, err := ev.Condition(ConditionStateProcessedBy, "first")
	if err != nil || !got {
		t.Errorf("Condition(state_processed_by) = %v, %v, want true, nil", got, err)
	}
}

func TestEvaluator_StateHadFailures(t *testing.T) {
	state := NewState(nil, nil)
	ev := newEvaluator(NewRule("check"), state)

	if ev.StateHadFailures() {
		t.Fatal("StateHadFailures() = true, want false")
	}

	bad := NewRule("bad")
	_ = bad.Run(func(*Evaluator) (any, error) { return nil, errors.New("boom") })
	_, _ = state.ProcessRule(bad)

	got, err := ev.Condition(ConditionStateHadFailures)
	if err != nil || !got {
		t.Errorf("Condition(state_had_failures) = %v, %v, want true, nil", got, err)
	}
}

func TestEvaluator_ConditionDepthLimit(t *testing.T) {
	r, err := Define("loop", func(r *Rule) error {
		if err := r.Condition("loop", func(ev *Evaluator, _ ...any) (bool, error) {
			return ev.Condition("loop")
		}); err != nil {
			return err
		}
		return r.Run(func(ev *Evaluator) (any, error) {
			return ev.Condition("loop")
		})
	})
	if err != nil {
		t.Fatalf("Define() error = %v, want nil", err)
	}

	ev := newEvaluator(r, NewState(nil, nil))
	if _, err := ev.Condition("loop"); !errors.Is(err, ErrConditionDepth) {
		t.Fatalf("Condition() error = %v, want %v", err, ErrConditionDepth)
	}
	if ev.depth != 0 {
		t.Errorf("depth after Condition() = %d, want 0", ev.depth)
	}

	result, err := r.Process(NewState(nil, nil))
	if err != nil {
		t.Fatalf("Process() error = %v, want nil", err)
	}
	if !errors.Is(result.Err, ErrConditionDepth) {
		t.Errorf("Result.Err = %v, want %v", result.Err, ErrConditionDepth)
	}
}
