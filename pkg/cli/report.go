package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"mercator-hq/rulekeeper/pkg/engine"
)

// PassReport is the printable outcome of one pass.
type PassReport struct {
	StateID   string           `json:"state_id"`
	Rules     int              `json:"rules"`
	Processed int              `json:"processed"`
	Failures  bool             `json:"failures"`
	Aborted   string           `json:"aborted,omitempty"`
	Duration  time.Duration    `json:"duration_ns"`
	Results   []engine.Summary `json:"results"`
	State     map[string]any   `json:"state"`
}

// NewPassReport builds a report from a processed state. passErr is the
// error returned by ProcessState, if any.
func NewPassReport(eng *engine.Engine, state *engine.State, elapsed time.Duration, passErr error) *PassReport {
	report := &PassReport{
		StateID:  state.ID(),
		Failures: state.HadFailures(),
		Duration: elapsed,
		State:    state.Snapshot(),
	}

	if eng != nil && eng.Rules() != nil {
		report.Rules = eng.Rules().Size()
	}

	results := state.Results()
	report.Processed = len(results)
	report.Results = make([]engine.Summary, 0, len(results))
	for _, result := range results {
		report.Results = append(report.Results, result.Summary())
	}

	if passErr != nil {
		report.Aborted = passErr.Error()
	}

	return report
}

// Failed reports whether the pass aborted or any rule failed.
func (r *PassReport) Failed() bool {
	return r.Aborted != "" || r.Failures
}

// WriteText renders the report for a terminal.
func (r *PassReport) WriteText(w io.Writer) error {
	failures := "no"
	if r.Failures {
		failures = "yes"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Pass %s: %d rules, %d processed, failures: %s (%s)\n",
		r.StateID, r.Rules, r.Processed, failures, r.Duration.Round(time.Microsecond))

	for _, s := range r.Results {
		if s.HasError {
			fmt.Fprintf(&b, "  ✗ %s [%d] %s: %s\n", s.Rule, s.Priority, s.Duration, s.Error)
			continue
		}
		if s.Output != nil {
			fmt.Fprintf(&b, "  ✓ %s [%d] %s => %v\n", s.Rule, s.Priority, s.Duration, s.Output)
		} else {
			fmt.Fprintf(&b, "  ✓ %s [%d] %s\n", s.Rule, s.Priority, s.Duration)
		}
	}

	if r.Aborted != "" {
		fmt.Fprintf(&b, "Aborted: %s\n", r.Aborted)
	}

	if len(r.State) > 0 {
		b.WriteString("State:\n")
		keys := make([]string, 0, len(r.State))
		for k := range r.State {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s = %v\n", k, r.State[k])
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RuleInfo describes a loaded rule.
type RuleInfo struct {
	Name         string   `json:"name"`
	Priority     int      `json:"priority"`
	Concurrency  string   `json:"concurrency"`
	File         string   `json:"file,omitempty"`
	Requirements []string `json:"requirements,omitempty"`
}

// RuleList is the printable rule set of an engine, in execution order.
type RuleList []RuleInfo

// NewRuleList describes the engine's rules in priority order.
func NewRuleList(eng *engine.Engine) RuleList {
	if eng == nil || eng.Rules() == nil {
		return RuleList{}
	}

	ordered := eng.Rules().ByPriority()
	list := make(RuleList, 0, len(ordered))
	for _, rule := range ordered {
		info := RuleInfo{
			Name:        rule.Name(),
			Priority:    rule.Priority(),
			Concurrency: string(rule.Concurrency()),
			File:        rule.File(),
		}
		for _, req := range rule.Requirements() {
			info.Requirements = append(info.Requirements, req.String())
		}
		list = append(list, info)
	}
	return list
}

// WriteText renders the rule list as an aligned table.
func (l RuleList) WriteText(w io.Writer) error {
	if len(l) == 0 {
		_, err := io.WriteString(w, "No rules loaded\n")
		return err
	}

	nameWidth := len("NAME")
	for _, info := range l {
		if len(info.Name) > nameWidth {
			nameWidth = len(info.Name)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-*s  %8s  %-11s  %s\n", nameWidth, "NAME", "PRIORITY", "CONCURRENCY", "REQUIRES")
	for _, info := range l {
		requires := "-"
		if len(info.Requirements) > 0 {
			requires = strings.Join(info.Requirements, ", ")
		}
		fmt.Fprintf(&b, "%-*s  %8d  %-11s  %s\n", nameWidth, info.Name, info.Priority, info.Concurrency, requires)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// FileCheck is the validation outcome of one rule file.
type FileCheck struct {
	File  string `json:"file"`
	Rule  string `json:"rule,omitempty"`
	Error string `json:"error,omitempty"`
}

// ValidationReport lists the validation outcome of every rule file.
type ValidationReport struct {
	Files []FileCheck `json:"files"`
}

// Add records the outcome for one file.
func (r *ValidationReport) Add(file string, rule *engine.Rule, err error) {
	check := FileCheck{File: file}
	if rule != nil {
		check.Rule = rule.Name()
	}
	if err != nil {
		check.Error = err.Error()
	}
	r.Files = append(r.Files, check)
}

// Invalid returns the number of files that failed validation.
func (r *ValidationReport) Invalid() int {
	n := 0
	for _, f := range r.Files {
		if f.Error != "" {
			n++
		}
	}
	return n
}

// WriteText renders the validation report.
func (r *ValidationReport) WriteText(w io.Writer) error {
	var b strings.Builder
	for _, f := range r.Files {
		if f.Error != "" {
			fmt.Fprintf(&b, "✗ %s\n    %s\n", f.File, f.Error)
		} else {
			fmt.Fprintf(&b, "✓ %s (%s)\n", f.File, f.Rule)
		}
	}
	fmt.Fprintf(&b, "\n%d files checked, %d invalid\n", len(r.Files), r.Invalid())

	_, err := io.WriteString(w, b.String())
	return err
}
