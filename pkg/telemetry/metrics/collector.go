package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/rulekeeper/pkg/config"
	"mercator-hq/rulekeeper/pkg/engine"
)

// overflowRule replaces rule label values past the cardinality limit.
const overflowRule = "_other"

// Collector records engine activity as Prometheus metrics. It implements
// engine.Observer and is installed through engine.Config.Observer.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	ruleMetrics *RuleMetrics
	passMetrics *PassMetrics

	cardinalityLimiter *CardinalityLimiter
}

var _ engine.Observer = (*Collector)(nil)

// NewCollector creates a collector registered on registry. A nil registry
// gets a fresh one.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Metrics, nil)
//	eng, err := engine.New(&engine.Config{Observer: collector}, source, logger)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		ruleMetrics:        NewRuleMetrics(cfg, registry),
		passMetrics:        NewPassMetrics(cfg, registry),
		cardinalityLimiter: NewCardinalityLimiter(1000), // Max 1K distinct rule names
	}
}

// PassStarted implements engine.Observer.
func (c *Collector) PassStarted(*engine.State) {
	if !c.config.Enabled {
		return
	}
	c.passMetrics.Started()
}

// RuleSkipped implements engine.Observer.
func (c *Collector) RuleSkipped(rule *engine.Rule, _ *engine.State, reason engine.SkipReason) {
	if !c.config.Enabled {
		return
	}
	c.ruleMetrics.RecordSkip(c.ruleLabel(rule.Name()), string(reason))
}

// RuleExecuted implements engine.Observer.
func (c *Collector) RuleExecuted(result *engine.Result, _ *engine.State) {
	if !c.config.Enabled {
		return
	}

	status := "success"
	if result.HasError() {
		status = "error"
	}
	c.ruleMetrics.RecordExecution(c.ruleLabel(result.Name()), status, result.Duration)
}

// PassCompleted implements engine.Observer.
func (c *Collector) PassCompleted(state *engine.State, elapsed time.Duration, err error) {
	if !c.config.Enabled {
		return
	}

	status := PassOK
	switch {
	case err != nil:
		status = PassAborted
	case state.HadFailures():
		status = PassFailures
	}
	c.passMetrics.Completed(status, len(state.Results()), elapsed)
}

// SetRulesLoaded records the rule count of a freshly built engine.
func (c *Collector) SetRulesLoaded(n int) {
	if !c.config.Enabled {
		return
	}
	c.passMetrics.SetRulesLoaded(n)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) ruleLabel(name string) string {
	if c.cardinalityLimiter.Allow(name) {
		return name
	}
	return overflowRule
}

// CardinalityLimiter bounds the number of distinct label values a metric
// can take.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter admitting maxCardinality values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is already tracked or still fits under the
// limit, tracking it in the latter case.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
