package gitsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"mercator-hq/rulekeeper/pkg/loader"
)

// PollerConfig contains configuration for a Poller.
type PollerConfig struct {
	// Interval is the time between pulls.
	Interval time.Duration

	// Extensions are the rule file extensions that trigger a callback.
	// Default: [".yaml", ".yml"]
	Extensions []string
}

// Poller pulls a repository at a fixed interval and calls back when a
// pulled commit changes rule files.
type Poller struct {
	repo   *Repository
	config *PollerConfig
	logger *slog.Logger

	mu         sync.Mutex
	running    bool
	lastCommit string
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// NewPoller creates a poller for repo.
func NewPoller(repo *Repository, config *PollerConfig, logger *slog.Logger) (*Poller, error) {
	if repo == nil {
		return nil, errors.New("repository cannot be nil")
	}
	if config == nil || config.Interval <= 0 {
		return nil, errors.New("poll interval must be positive")
	}

	cfgCopy := *config
	if len(cfgCopy.Extensions) == 0 {
		cfgCopy.Extensions = []string{".yaml", ".yml"}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Poller{
		repo:   repo,
		config: &cfgCopy,
		logger: logger.With("component", "gitsource"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Check pulls once and reports whether rule files changed. Commits that
// touch only other files are recorded without reporting a change.
func (p *Poller) Check(ctx context.Context) (bool, error) {
	result, err := p.repo.Pull(ctx)
	if err != nil {
		return false, err
	}

	if !result.HadChanges {
		return false, nil
	}

	p.mu.Lock()
	p.lastCommit = result.ToSHA
	p.mu.Unlock()

	for _, name := range result.ChangedFiles {
		if p.repo.IsRulePath(name) && loader.IsRuleFile(path.Base(name), p.config.Extensions) {
			return true, nil
		}
	}

	p.logger.Info("no rule files changed, skipping reload",
		"commit_sha", shortSHA(result.ToSHA),
		"changed_files", result.ChangedFiles,
	)
	return false, nil
}

// Watch blocks until ctx is cancelled or Stop is called, pulling every
// Interval and invoking onChange after rule files change. Pull and
// callback errors are logged and polling continues.
func (p *Poller) Watch(ctx context.Context, onChange func(ctx context.Context) error) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("poller already running")
	}
	p.running = true
	p.mu.Unlock()

	defer close(p.doneCh)

	commit, err := p.repo.CurrentCommit()
	if err != nil {
		return fmt.Errorf("failed to read initial commit: %w", err)
	}
	p.mu.Lock()
	p.lastCommit = commit.SHA
	p.mu.Unlock()

	p.logger.Info("git poller started",
		"interval", p.config.Interval,
		"commit_sha", shortSHA(p.LastCommit()),
	)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("git poller stopped", "reason", "context cancelled")
			return nil

		case <-p.stopCh:
			p.logger.Info("git poller stopped")
			return nil

		case <-ticker.C:
			changed, err := p.Check(ctx)
			if err != nil {
				p.logger.Error("failed to check for rule changes", "error", err)
				continue
			}
			if !changed {
				continue
			}

			p.logger.Info("rule files changed", "commit_sha", shortSHA(p.LastCommit()))
			if err := onChange(ctx); err != nil {
				p.logger.Error("rule reload failed", "error", err)
			}
		}
	}
}

// Stop stops a running poller and waits for Watch to return.
func (p *Poller) Stop() error {
	p.mu.Lock()
	running := p.running
	p.running = false
	p.mu.Unlock()

	if running {
		close(p.stopCh)
		<-p.doneCh
	}
	return nil
}

// LastCommit returns the most recently pulled commit SHA.
func (p *Poller) LastCommit() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastCommit
}
