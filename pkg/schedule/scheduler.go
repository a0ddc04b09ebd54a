package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner runs one engine pass.
type Runner interface {
	RunPass(ctx context.Context) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) error

// RunPass calls f.
func (f RunnerFunc) RunPass(ctx context.Context) error {
	return f(ctx)
}

// Config contains scheduler configuration.
type Config struct {
	// Cron is a standard five-field cron expression or a descriptor such
	// as "@every 5m" or "@hourly".
	Cron string

	// RunOnStart runs one pass immediately when the scheduler starts.
	RunOnStart bool
}

// Validate validates the scheduler configuration.
func (c *Config) Validate() error {
	if c.Cron == "" {
		return errors.New("cron expression is required")
	}
	if _, err := cron.ParseStandard(c.Cron); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", c.Cron, err)
	}
	return nil
}

// Scheduler runs passes on a cron schedule. A pass that is still running
// when the next one is due causes that tick to be skipped, since an engine
// runs one pass at a time.
type Scheduler struct {
	config *Config
	runner Runner
	logger *slog.Logger
	cron   *cron.Cron

	mu      sync.Mutex
	running bool
	entry   cron.EntryID
	initial sync.WaitGroup

	runs     atomic.Int64
	failures atomic.Int64
}

// New creates a scheduler for runner.
func New(config *Config, runner Runner, logger *slog.Logger) (*Scheduler, error) {
	if config == nil {
		return nil, errors.New("schedule config is nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if runner == nil {
		return nil, errors.New("runner is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "schedule")

	return &Scheduler{
		config: config,
		runner: runner,
		logger: logger,
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{logger}),
			cron.SkipIfStillRunning(cronLogger{logger}),
		)),
	}, nil
}

// Start schedules passes and returns. Passes run until ctx is cancelled or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler already running")
	}

	job := cron.FuncJob(func() { s.runPass(ctx) })
	id, err := s.cron.AddJob(s.config.Cron, job)
	if err != nil {
		return fmt.Errorf("failed to schedule passes: %w", err)
	}
	s.entry = id

	s.cron.Start()
	s.running = true

	s.logger.Info("scheduler started",
		"schedule", s.config.Cron,
		"run_on_start", s.config.RunOnStart,
	)

	if s.config.RunOnStart {
		// The wrapped job shares the skip-if-running guard with the
		// scheduled ticks.
		wrapped := s.cron.Entry(id).WrappedJob
		s.initial.Add(1)
		go func() {
			defer s.initial.Done()
			wrapped.Run()
		}()
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runPass executes one scheduled pass.
func (s *Scheduler) runPass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	n := s.runs.Add(1)
	s.logger.Debug("scheduled pass starting", "run", n)

	if err := s.runner.RunPass(ctx); err != nil {
		s.failures.Add(1)
		s.logger.Error("scheduled pass failed",
			"run", n,
			"error", err,
			"duration", time.Since(start),
		)
		return
	}

	s.logger.Info("scheduled pass completed",
		"run", n,
		"duration", time.Since(start),
	)
}

// Stop stops the scheduler and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	<-s.cron.Stop().Done()
	s.initial.Wait()
	s.running = false
	s.logger.Info("scheduler stopped",
		"runs", s.runs.Load(),
		"failures", s.failures.Load(),
	)
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled pass time, or nil when not running.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	next := s.cron.Entry(s.entry).Next
	if next.IsZero() {
		return nil
	}
	return &next
}

// Runs returns how many passes have started.
func (s *Scheduler) Runs() int64 {
	return s.runs.Load()
}

// Failures returns how many passes returned an error.
func (s *Scheduler) Failures() int64 {
	return s.failures.Load()
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
