package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"mercator-hq/rulekeeper/pkg/engine"
)

// PassProgress prints one line per rule as a pass runs. It implements
// engine.Observer.
type PassProgress struct {
	mu     sync.Mutex
	writer io.Writer
}

var _ engine.Observer = (*PassProgress)(nil)

// NewPassProgress creates a progress printer that writes to w.
// If w is nil, it defaults to os.Stderr.
func NewPassProgress(w io.Writer) *PassProgress {
	if w == nil {
		w = os.Stderr
	}
	return &PassProgress{writer: w}
}

// PassStarted prints the pass header.
func (p *PassProgress) PassStarted(state *engine.State) {
	p.printf("→ pass %s\n", state.ID())
}

// RuleSkipped prints a skipped rule.
func (p *PassProgress) RuleSkipped(rule *engine.Rule, _ *engine.State, reason engine.SkipReason) {
	p.printf("  - %s skipped (%s)\n", rule.Name(), reason)
}

// RuleExecuted prints an executed rule.
func (p *PassProgress) RuleExecuted(result *engine.Result, _ *engine.State) {
	if result.HasError() {
		p.printf("  ✗ %s (%s): %v\n", result.Name(), result.Duration, result.Err)
		return
	}
	p.printf("  ✓ %s (%s)\n", result.Name(), result.Duration)
}

// PassCompleted prints the pass footer.
func (p *PassProgress) PassCompleted(state *engine.State, elapsed time.Duration, err error) {
	if err != nil {
		p.printf("✗ pass %s aborted after %s: %v\n", state.ID(), elapsed, err)
		return
	}
	p.printf("✓ pass %s completed in %s\n", state.ID(), elapsed)
}

func (p *PassProgress) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.writer, format, args...)
}
