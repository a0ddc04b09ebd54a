package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"mercator-hq/rulekeeper/pkg/engine"
)

func newTestEngine(t *testing.T, observer engine.Observer) *engine.Engine {
	t.Helper()

	greet, err := engine.Define("greet", func(r *engine.Rule) error {
		if err := r.Requirement("name", engine.String); err != nil {
			return err
		}
		return r.Run(func(ev *engine.Evaluator) (any, error) {
			name, _ := ev.State().Get("name")
			return "hello " + name.(string), ev.State().Set("greeted", true)
		})
	})
	if err != nil {
		t.Fatalf("Define(greet) error = %v, want nil", err)
	}

	broken, err := engine.Define("broken", func(r *engine.Rule) error {
		if err := r.SetPriority(60); err != nil {
			return err
		}
		return r.Run(func(*engine.Evaluator) (any, error) {
			return nil, errors.New("disk full")
		})
	})
	if err != nil {
		t.Fatalf("Define(broken) error = %v, want nil", err)
	}

	cfg := engine.DefaultConfig()
	cfg.Observer = observer

	eng, err := engine.New(cfg, engine.StaticSource(greet, broken), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("engine.New() error = %v, want nil", err)
	}
	return eng
}

func runPass(t *testing.T, eng *engine.Engine) *PassReport {
	t.Helper()

	state := eng.CreateState()
	if err := state.Set("name", "ada"); err != nil {
		t.Fatalf("Set() error = %v, want nil", err)
	}

	start := time.Now()
	_, err := eng.ProcessState(state)
	return NewPassReport(eng, state, time.Since(start), err)
}

func TestPassReport(t *testing.T) {
	report := runPass(t, newTestEngine(t, nil))

	if report.Rules != 2 || report.Processed != 2 {
		t.Errorf("Rules, Processed = %d, %d, want 2, 2", report.Rules, report.Processed)
	}
	if !report.Failures || !report.Failed() {
		t.Error("Failures = false, want true")
	}
	if report.Results[0].Rule != "greet" || report.Results[0].Output != "hello ada" {
		t.Errorf("Results[0] = %+v, want greet => hello ada", report.Results[0])
	}
	if report.Results[1].Error == "" {
		t.Errorf("Results[1].Error is empty, want disk full")
	}
	if report.State["greeted"] != true {
		t.Errorf("State[greeted] = %v, want true", report.State["greeted"])
	}
}

func TestPassReport_WriteText(t *testing.T) {
	report := runPass(t, newTestEngine(t, nil))
	buf := &bytes.Buffer{}

	if err := NewFormatter(FormatText).FormatTo(buf, report); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"2 rules, 2 processed, failures: yes", "✓ greet [50]", "=> hello ada", "✗ broken [60]", "disk full", "greeted = true", "name = ada"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPassReport_JSON(t *testing.T) {
	report := runPass(t, newTestEngine(t, nil))
	buf := &bytes.Buffer{}

	if err := NewFormatter(FormatJSON).FormatTo(buf, report); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	var decoded struct {
		Rules    int  `json:"rules"`
		Failures bool `json:"failures"`
		Results  []struct {
			Rule  string `json:"rule"`
			Error string `json:"error"`
		} `json:"results"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if decoded.Rules != 2 || !decoded.Failures || len(decoded.Results) != 2 {
		t.Errorf("decoded = %+v, want 2 rules with failures", decoded)
	}
}

func TestPassReport_Aborted(t *testing.T) {
	eng := newTestEngine(t, nil)
	state := eng.CreateState()

	report := NewPassReport(eng, state, time.Millisecond, errors.New("guard failed"))

	if report.Aborted != "guard failed" || !report.Failed() {
		t.Errorf("report = %+v, want aborted", report)
	}
}

func TestRuleList(t *testing.T) {
	list := NewRuleList(newTestEngine(t, nil))

	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}
	if list[0].Name != "greet" || list[1].Name != "broken" {
		t.Errorf("order = %s, %s, want greet, broken", list[0].Name, list[1].Name)
	}
	if len(list[0].Requirements) != 1 || list[0].Requirements[0] != "name:String" {
		t.Errorf("Requirements = %v, want [name:String]", list[0].Requirements)
	}

	buf := &bytes.Buffer{}
	if err := list.WriteText(buf); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "NAME") || !strings.Contains(buf.String(), "name:String") {
		t.Errorf("WriteText() = %q", buf.String())
	}
}

func TestRuleList_Empty(t *testing.T) {
	buf := &bytes.Buffer{}

	if err := NewRuleList(nil).WriteText(buf); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	if buf.String() != "No rules loaded\n" {
		t.Errorf("WriteText() = %q", buf.String())
	}
}

func TestValidationReport(t *testing.T) {
	report := &ValidationReport{}
	report.Add("a_rule.yaml", engine.NewRule("a"), nil)
	report.Add("b_rule.yaml", nil, errors.New("priority must be an integer"))

	if report.Invalid() != 1 {
		t.Errorf("Invalid() = %d, want 1", report.Invalid())
	}

	buf := &bytes.Buffer{}
	if err := report.WriteText(buf); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "✓ a_rule.yaml (a)") || !strings.Contains(out, "2 files checked, 1 invalid") {
		t.Errorf("WriteText() = %q", out)
	}
}
