package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mercator-hq/rulekeeper/pkg/engine"
)

// RulesLoadedCheck reports unhealthy until current returns an engine with
// at least one rule. current is called on every check so watch mode can
// swap engines.
func RulesLoadedCheck(current func() *engine.Engine) CheckFunc {
	return func(context.Context) error {
		eng := current()
		if eng == nil {
			return errors.New("no engine loaded")
		}
		if eng.Rules() == nil || eng.Rules().IsEmpty() {
			return engine.ErrNoRulesLoaded
		}
		return nil
	}
}

// PassTracker remembers the outcome of the most recent pass. It implements
// engine.Observer.
type PassTracker struct {
	mu       sync.RWMutex
	finished time.Time
	err      error
	passes   int
}

var _ engine.Observer = (*PassTracker)(nil)

// NewPassTracker creates an empty tracker.
func NewPassTracker() *PassTracker {
	return &PassTracker{}
}

// PassStarted implements engine.Observer.
func (p *PassTracker) PassStarted(*engine.State) {}

// RuleSkipped implements engine.Observer.
func (p *PassTracker) RuleSkipped(*engine.Rule, *engine.State, engine.SkipReason) {}

// RuleExecuted implements engine.Observer.
func (p *PassTracker) RuleExecuted(*engine.Result, *engine.State) {}

// PassCompleted implements engine.Observer.
func (p *PassTracker) PassCompleted(_ *engine.State, _ time.Duration, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.finished = time.Now()
	p.err = err
	p.passes++
}

// Passes returns the number of completed passes.
func (p *PassTracker) Passes() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.passes
}

// Check reports unhealthy when the last pass was aborted, or when no pass
// finished within maxAge. A zero maxAge disables the age check.
func (p *PassTracker) Check(maxAge time.Duration) CheckFunc {
	return func(context.Context) error {
		p.mu.RLock()
		defer p.mu.RUnlock()

		if p.err != nil {
			return fmt.Errorf("last pass aborted: %w", p.err)
		}
		if maxAge > 0 && p.passes > 0 && time.Since(p.finished) > maxAge {
			return fmt.Errorf("last pass finished %s ago", time.Since(p.finished).Round(time.Second))
		}
		return nil
	}
}
