package engine

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestState_AddTwice(t *testing.T) {
	state := NewState(nil, nil)

	if err := state.Add("x", 1); err != nil {
		t.Fatalf("Add() error = %v, want nil", err)
	}

	err := state.Add("x", 1)
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("Add() second error = %v, want %v", err, ErrDuplicateKey)
	}

	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("Add() error type = %T, want *StateError", err)
	}
	if stateErr.Op != "add" || stateErr.Key != "x" {
		t.Errorf("StateError = %+v, want op add key x", stateErr)
	}
}

func TestState_ImmutableRejectsMutation(t *testing.T) {
	state := NewState(nil, nil)
	_ = state.Set("x", 1)
	state.PreventMutation()

	tests := []struct {
		name string
		op   func() error
	}{
		{name: "set", op: func() error { return state.Set("y", 2) }},
		{name: "add", op: func() error { return state.Add("y", 2) }},
		{name: "delete", op: func() error { _, err := state.Delete("x"); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.op(); !errors.Is(err, ErrImmutableState) {
				t.Errorf("%s error = %v, want %v", tt.name, err, ErrImmutableState)
			}
		})
	}

	if v, ok := state.Get("x"); !ok || v != 1 {
		t.Errorf("Get(x) = %v, %v, want 1, true", v, ok)
	}
	if !state.Has("x") {
		t.Error("Has(x) = false, want true")
	}
	if state.Has("y") {
		t.Error("Has(y) = true, want false")
	}

	state.AllowMutation()
	if err := state.Set("y", 2); err != nil {
		t.Errorf("Set() after AllowMutation error = %v, want nil", err)
	}
}

func TestState_DeleteAndFetch(t *testing.T) {
	state := NewState(nil, nil)
	_ = state.Set("x", "v")

	old, err := state.Delete("x")
	if err != nil || old != "v" {
		t.Fatalf("Delete() = %v, %v, want v, nil", old, err)
	}

	if _, err := state.Fetch("x"); !errors.Is(err, ErrMissingItem) {
		t.Errorf("Fetch() error = %v, want %v", err, ErrMissingItem)
	}
}

func TestState_ItemsOfType(t *testing.T) {
	state := NewState(nil, nil)
	_ = state.Set("a", 1)
	_ = state.Set("b", 2.5)
	_ = state.Set("c", "text")
	_ = state.Set("d", time.Second)

	tests := []struct {
		typ  Type
		want map[string]any
	}{
		{typ: Integer, want: map[string]any{"a": 1}},
		{typ: Float, want: map[string]any{"b": 2.5}},
		{typ: Numeric, want: map[string]any{"a": 1, "b": 2.5}},
		{typ: Duration, want: map[string]any{"d": time.Second}},
		{typ: String, want: map[string]any{"c": "text"}},
		{typ: Bool, want: map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.typ.Name(), func(t *testing.T) {
			got := state.ItemsOfType(tt.typ)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ItemsOfType(%s) = %v, want %v", tt.typ.Name(), got, tt.want)
			}
			if state.HasItemOfType(tt.typ) != (len(tt.want) > 0) {
				t.Errorf("HasItemOfType(%s) = %v, want %v", tt.typ.Name(), !(len(tt.want) > 0), len(tt.want) > 0)
			}
		})
	}
}

func TestState_MeetsRequirement(t *testing.T) {
	state := NewState(nil, nil)
	_ = state.Set("n", 4)
	_ = state.Set("s", "str")

	tests := []struct {
		name       string
		req        Requirement
		want       bool
		wantReason string
	}{
		{name: "named ok", req: Requirement{Key: "n", Type: Integer}, want: true, wantReason: "valid state found"},
		{name: "named supertype", req: Requirement{Key: "n", Type: Numeric}, want: true, wantReason: "valid state found"},
		{name: "missing key", req: Requirement{Key: "x", Type: Integer}, wantReason: "state has no item x"},
		{name: "wrong type", req: Requirement{Key: "s", Type: Integer}, wantReason: "state item s is not a Integer"},
		{name: "unnamed ok", req: Requirement{Type: String}, want: true, wantReason: "valid state found"},
		{name: "unnamed missing", req: Requirement{Type: Float}, wantReason: "state has no items of type Float"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := state.MeetsRequirement(tt.req)
			if got != tt.want || reason != tt.wantReason {
				t.Errorf("MeetsRequirement(%v) = %v, %q, want %v, %q", tt.req, got, reason, tt.want, tt.wantReason)
			}
		})
	}
}

func TestState_ProcessRule_SafeRuleSeesReadOnlyState(t *testing.T) {
	state := NewState(nil, nil)

	var mutableDuring bool
	r := NewRule("reader")
	_ = r.SetConcurrency(ConcurrencySafe)
	_ = r.Run(func(ev *Evaluator) (any, error) {
		mutableDuring = ev.State().Mutable()
		return nil, ev.State().Set("x", 1)
	})

	result, err := state.ProcessRule(r)
	if err != nil {
		t.Fatalf("ProcessRule() error = %v, want nil", err)
	}
	if mutableDuring {
		t.Error("Mutable() during safe rule = true, want false")
	}
	if !errors.Is(result.Err, ErrImmutableState) {
		t.Errorf("Result.Err = %v, want %v", result.Err, ErrImmutableState)
	}
	if !state.Mutable() {
		t.Error("Mutable() after ProcessRule = false, want true")
	}
}

func TestState_ProcessRule_RecordsOnlyExecutedRules(t *testing.T) {
	state := NewState(nil, nil)

	skipped := NewRule("skipped")
	_ = skipped.Requirement("x", String)
	_ = skipped.Run(func(*Evaluator) (any, error) { return nil, nil })

	ran := NewRule("ran")
	_ = ran.Run(func(*Evaluator) (any, error) { return "done", nil })

	if result, err := state.ProcessRule(skipped); err != nil || result != nil {
		t.Fatalf("ProcessRule(skipped) = %v, %v, want nil, nil", result, err)
	}
	if _, err := state.ProcessRule(ran); err != nil {
		t.Fatalf("ProcessRule(ran) error = %v, want nil", err)
	}

	if got := state.ProcessedRules(); len(got) != 1 || got[0] != ran {
		t.Errorf("ProcessedRules() = %v, want [ran]", got)
	}
	if got := state.Results(); len(got) != 1 || got[0].Output != "done" {
		t.Errorf("Results() = %v, want one result with output done", got)
	}
	if !state.ProcessedBy(ran) || !state.ProcessedByName("ran") {
		t.Error("ProcessedBy(ran) = false, want true")
	}
	if state.ProcessedBy(skipped) || state.ProcessedByName("skipped") {
		t.Error("ProcessedBy(skipped) = true, want false")
	}
}

func TestState_HadFailures(t *testing.T) {
	state := NewState(nil, nil)
	if state.HadFailures() {
		t.Fatal("HadFailures() on empty state = true, want false")
	}

	ok := NewRule("ok")
	_ = ok.Run(func(*Evaluator) (any, error) { return nil, nil })
	_, _ = state.ProcessRule(ok)
	if state.HadFailures() {
		t.Fatal("HadFailures() after success = true, want false")
	}

	bad := NewRule("bad")
	_ = bad.Run(func(*Evaluator) (any, error) { return nil, errors.New("boom") })
	_, _ = state.ProcessRule(bad)
	if !state.HadFailures() {
		t.Error("HadFailures() after failure = false, want true")
	}
}

func TestState_KeysAndSnapshot(t *testing.T) {
	state := NewState(nil, nil)
	_ = state.Set("b", 2)
	_ = state.Set("a", 1)

	if got := state.Keys(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Keys() = %v, want [a b]", got)
	}

	snap := state.Snapshot()
	snap["c"] = 3
	if state.Has("c") {
		t.Error("Snapshot() shares storage with the state")
	}
	if state.ID() == "" || state.ID() == NewState(nil, nil).ID() {
		t.Errorf("ID() = %q, want unique non-empty id", state.ID())
	}
}
