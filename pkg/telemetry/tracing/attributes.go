package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/rulekeeper/pkg/engine"
)

// Span attribute keys.
const (
	AttrStateID      = "rulekeeper.state.id"
	AttrRule         = "rulekeeper.rule"
	AttrRulePriority = "rulekeeper.rule.priority"
	AttrRuleFile     = "rulekeeper.rule.file"
	AttrConcurrency  = "rulekeeper.rule.concurrency"
	AttrSkipReason   = "rulekeeper.skip.reason"
	AttrResults      = "rulekeeper.pass.results"
	AttrHadFailures  = "rulekeeper.pass.had_failures"
	AttrErrorMessage = "error.message"
)

// ruleAttributes describes rule on a span or event.
func ruleAttributes(rule *engine.Rule) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrRule, rule.Name()),
		attribute.Int(AttrRulePriority, rule.Priority()),
		attribute.String(AttrConcurrency, string(rule.Concurrency())),
	}
	if rule.File() != "" {
		attrs = append(attrs, attribute.String(AttrRuleFile, rule.File()))
	}
	return attrs
}

// SetPassAttributes records the outcome of a pass on span.
func SetPassAttributes(span trace.Span, state *engine.State) {
	span.SetAttributes(
		attribute.String(AttrStateID, state.ID()),
		attribute.Int(AttrResults, len(state.Results())),
		attribute.Bool(AttrHadFailures, state.HadFailures()),
	)
}
