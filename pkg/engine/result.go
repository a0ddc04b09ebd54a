package engine

import (
	"fmt"
	"time"
)

// Result records the outcome of one rule execution within one pass.
// It is created when the rule starts executing and is not modified after
// the execution stops.
type Result struct {
	// Rule is the rule that produced this result.
	Rule *Rule

	// StartTime is when the rule logic started.
	StartTime time.Time

	// EndTime is when the rule logic returned or failed.
	EndTime time.Time

	// Duration is EndTime - StartTime.
	Duration time.Duration

	// Output is the value returned by the rule logic. It is nil when the
	// logic failed.
	Output any

	// Err is the captured failure, if any.
	Err error

	ran bool
}

func newResult(rule *Rule) *Result {
	return &Result{Rule: rule}
}

// Name returns the name of the rule that produced the result.
func (r *Result) Name() string {
	if r.Rule == nil {
		return ""
	}
	return r.Rule.Name()
}

// HasError reports whether the rule logic failed.
func (r *Result) HasError() bool {
	return r.Err != nil
}

// Ran reports whether the rule logic was started.
func (r *Result) Ran() bool {
	return r.ran
}

func (r *Result) start() {
	r.ran = true
	r.StartTime = time.Now()
}

func (r *Result) stop() {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
}

// Summary is a serializable view of a Result.
type Summary struct {
	Rule      string        `json:"rule"`
	Priority  int           `json:"priority"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration_ns"`
	Output    any           `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
	HasError  bool          `json:"has_error"`
}

// Summary returns a serializable view of the result.
func (r *Result) Summary() Summary {
	s := Summary{
		Rule:      r.Name(),
		StartTime: r.StartTime,
		Duration:  r.Duration,
		Output:    r.Output,
		HasError:  r.HasError(),
	}
	if r.Rule != nil {
		s.Priority = r.Rule.Priority()
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	return s
}

// String returns a short diagnostic representation.
func (r *Result) String() string {
	return fmt.Sprintf("result(%s) ran=%t error=%t duration=%s", r.Name(), r.ran, r.HasError(), r.Duration)
}
