package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// RuleSource provides the rules an Engine runs. Each call returns freshly
// built rules; the engine calls it once per lifetime.
type RuleSource interface {
	// LoadRules loads all rules from the source.
	LoadRules(ctx context.Context) ([]*Rule, error)
}

// PathProvider is implemented by sources backed by a directory search path.
type PathProvider interface {
	Paths() []string
}

// SourceFunc adapts a function to RuleSource.
type SourceFunc func(ctx context.Context) ([]*Rule, error)

// LoadRules calls f.
func (f SourceFunc) LoadRules(ctx context.Context) ([]*Rule, error) {
	return f(ctx)
}

// StaticSource returns a source that always yields rules. Each rule can
// only belong to one engine.
func StaticSource(rules ...*Rule) RuleSource {
	return SourceFunc(func(context.Context) ([]*Rule, error) {
		return rules, nil
	})
}

// SkipReason explains why a rule did not run.
type SkipReason string

const (
	// SkipRequirements means the state did not meet a requirement.
	SkipRequirements SkipReason = "requirements"

	// SkipGuard means the run_when guard returned false.
	SkipGuard SkipReason = "guard"
)

// Observer receives pass lifecycle notifications. Implementations must not
// mutate the state.
type Observer interface {
	// PassStarted is called before ProcessState runs the first rule.
	PassStarted(state *State)

	// RuleSkipped is called when a rule did not run.
	RuleSkipped(rule *Rule, state *State, reason SkipReason)

	// RuleExecuted is called after a rule ran, whether or not it failed.
	RuleExecuted(result *Result, state *State)

	// PassCompleted is called when ProcessState returns. err is the guard
	// failure that aborted the pass, or nil.
	PassCompleted(state *State, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) PassStarted(*State) {}
func (nopObserver) RuleSkipped(*Rule, *State, SkipReason) {}
func (nopObserver) RuleExecuted(*Result, *State) {}
func (nopObserver) PassCompleted(*State, time.Duration, error) {}

// Observers fans notifications out to every non-nil observer in order.
func Observers(observers ...Observer) Observer {
	var list multiObserver
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	switch len(list) {
	case 0:
		return nopObserver{}
	case 1:
		return list[0]
	}
	return list
}

type multiObserver []Observer

func (m multiObserver) PassStarted(state *State) {
	for _, o := range m {
		o.PassStarted(state)
	}
}

func (m multiObserver) RuleSkipped(rule *Rule, state *State, reason SkipReason) {
	for _, o := range m {
		o.RuleSkipped(rule, state, reason)
	}
}

func (m multiObserver) RuleExecuted(result *Result, state *State) {
	for _, o := range m {
		o.RuleExecuted(result, state)
	}
}

func (m multiObserver) PassCompleted(state *State, elapsed time.Duration, err error) {
	for _, o := range m {
		o.PassCompleted(state, elapsed, err)
	}
}

// Config contains engine configuration.
type Config struct {
	// Observer is notified of skipped and executed rules. Optional.
	Observer Observer

	// MaxRules is the maximum number of rules to load. Zero means no limit.
	MaxRules int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{}
}

// Validate validates the engine configuration.
func (c *Config) Validate() error {
	if c.MaxRules < 0 {
		return fmt.Errorf("%w: max rules must be >= 0, got %d", ErrInvalidConfig, c.MaxRules)
	}
	return nil
}

// Engine owns a rule set and drives passes over states. The rule set is
// loaded once and cached for the lifetime of the engine; a load failure
// aborts construction.
//
// An Engine runs one pass at a time. Run counters live on the rules, so
// concurrent passes on one engine are not supported.
type Engine struct {
	config   *Config
	source   RuleSource
	logger   *slog.Logger
	observer Observer

	loadOnce sync.Once
	rules    *RuleSet
	loadErr  error
}

// New creates an engine and loads its rules from source.
func New(config *Config, source RuleSource, logger *slog.Logger) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if source == nil {
		return nil, ErrNilSource
	}

	if logger == nil {
		return nil, ErrNilLogger
	}

	e := &Engine{
		config:   config,
		source:   source,
		logger:   logger,
		observer: config.Observer,
	}

	if err := e.load(context.Background()); err != nil {
		return nil, err
	}

	return e, nil
}

// load reads the rule set from the source exactly once.
func (e *Engine) load(ctx context.Context) error {
	e.loadOnce.Do(func() {
		start := time.Now()

		rules, err := e.source.LoadRules(ctx)
		if err != nil {
			e.loadErr = err
			return
		}

		if e.config.MaxRules > 0 && len(rules) > e.config.MaxRules {
			e.loadErr = &LoadError{
				Message: fmt.Sprintf("loaded %d rules, maximum is %d", len(rules), e.config.MaxRules),
				Cause:   ErrInvalidConfig,
			}
			return
		}

		set := NewRuleSet()
		if err := set.AddAll(rules); err != nil {
			e.loadErr = err
			return
		}

		for _, rule := range set.Rules() {
			if rule.log == nil {
				rule.SetLogger(e.logger)
			}
		}

		e.rules = set
		e.logger.Info("rules loaded",
			"count", set.Size(),
			"duration", time.Since(start),
		)
	})
	return e.loadErr
}

// Rules returns the cached rule set.
func (e *Engine) Rules() *RuleSet {
	return e.rules
}

// EachRule calls fn for every rule in load order.
func (e *Engine) EachRule(fn func(*Rule)) {
	for _, rule := range e.rules.Rules() {
		fn(rule)
	}
}

// Path returns the directories the rules were loaded from, or nil when the
// source is not directory based.
func (e *Engine) Path() []string {
	if p, ok := e.source.(PathProvider); ok {
		return p.Paths()
	}
	return nil
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

// CreateState returns a fresh state bound to this engine.
func (e *Engine) CreateState() *State {
	return NewState(e, e.logger)
}

// ProcessState runs one pass: every rule's run counter is reset and the
// rules are processed in priority order. Logic failures are recorded on the
// results and do not stop the pass; a guard failure aborts it.
func (e *Engine) ProcessState(state *State) ([]*Result, error) {
	if e.rules == nil || e.rules.IsEmpty() {
		return nil, &EngineError{Message: "cannot process state", Cause: ErrNoRulesLoaded}
	}

	start := time.Now()
	obs := state.observer()
	ordered := e.rules.ByPriority()
	for _, rule := range ordered {
		rule.ResetCounter()
	}

	obs.PassStarted(state)
	for _, rule := range ordered {
		if _, err := state.ProcessRule(rule); err != nil {
			e.logger.Error("pass aborted",
				"rule", rule.Name(),
				"error", err,
				"state_id", state.ID(),
			)
			obs.PassCompleted(state, time.Since(start), err)
			return state.Results(), err
		}
	}

	elapsed := time.Since(start)
	results := state.Results()
	e.logger.Info("pass completed",
		"state_id", state.ID(),
		"rules", len(ordered),
		"processed", len(results),
		"failures", state.HadFailures(),
		"duration", elapsed,
	)
	obs.PassCompleted(state, elapsed, nil)

	return results, nil
}

// String returns a short diagnostic representation.
func (e *Engine) String() string {
	count := 0
	if e.rules != nil {
		count = e.rules.Size()
	}
	return fmt.Sprintf("engine(%d rules from [%s])", count, strings.Join(e.Path(), ", "))
}
