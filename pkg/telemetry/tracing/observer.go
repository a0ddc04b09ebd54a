package tracing

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/rulekeeper/pkg/engine"
)

// Observer turns engine passes into spans: one "engine.pass" span per
// pass, a child span per executed rule and a "rule.skipped" event per
// skipped rule. It implements engine.Observer.
type Observer struct {
	tracer *Tracer

	mu     sync.Mutex
	passes map[string]passSpan
}

type passSpan struct {
	ctx  context.Context
	span trace.Span
}

var _ engine.Observer = (*Observer)(nil)

// NewObserver creates an observer emitting spans through tracer.
func NewObserver(tracer *Tracer) *Observer {
	return &Observer{
		tracer: tracer,
		passes: make(map[string]passSpan),
	}
}

// PassStarted implements engine.Observer.
func (o *Observer) PassStarted(state *engine.State) {
	ctx, span := o.tracer.Start(context.Background(), "engine.pass",
		trace.WithAttributes(attribute.String(AttrStateID, state.ID())),
	)

	o.mu.Lock()
	o.passes[state.ID()] = passSpan{ctx: ctx, span: span}
	o.mu.Unlock()
}

// RuleSkipped implements engine.Observer.
func (o *Observer) RuleSkipped(rule *engine.Rule, state *engine.State, reason engine.SkipReason) {
	pass, ok := o.pass(state)
	if !ok {
		return
	}

	attrs := append(ruleAttributes(rule), attribute.String(AttrSkipReason, string(reason)))
	pass.span.AddEvent("rule.skipped", trace.WithAttributes(attrs...))
}

// RuleExecuted implements engine.Observer. The span covers the rule logic
// using the timestamps on the result.
func (o *Observer) RuleExecuted(result *engine.Result, state *engine.State) {
	parent := context.Background()
	if pass, ok := o.pass(state); ok {
		parent = pass.ctx
	}

	opts := []trace.SpanStartOption{
		trace.WithTimestamp(result.StartTime),
	}
	if result.Rule != nil {
		opts = append(opts, trace.WithAttributes(ruleAttributes(result.Rule)...))
	}

	_, span := o.tracer.Start(parent, "rule "+result.Name(), opts...)
	SetError(span, result.Err)
	SetStatus(span, result.Err)
	span.End(trace.WithTimestamp(result.EndTime))
}

// PassCompleted implements engine.Observer.
func (o *Observer) PassCompleted(state *engine.State, _ time.Duration, err error) {
	o.mu.Lock()
	pass, ok := o.passes[state.ID()]
	delete(o.passes, state.ID())
	o.mu.Unlock()

	if !ok {
		return
	}

	SetPassAttributes(pass.span, state)
	SetError(pass.span, err)
	SetStatus(pass.span, err)
	pass.span.End()
}

func (o *Observer) pass(state *engine.State) (passSpan, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	pass, ok := o.passes[state.ID()]
	return pass, ok
}
