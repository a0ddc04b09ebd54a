package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/rulekeeper/pkg/cli"
	"mercator-hq/rulekeeper/pkg/config"
	"mercator-hq/rulekeeper/pkg/engine"
	"mercator-hq/rulekeeper/pkg/gitsource"
	"mercator-hq/rulekeeper/pkg/loader"
	"mercator-hq/rulekeeper/pkg/rulefile"
	"mercator-hq/rulekeeper/pkg/secrets"
	"mercator-hq/rulekeeper/pkg/server"
	"mercator-hq/rulekeeper/pkg/telemetry/health"
	"mercator-hq/rulekeeper/pkg/telemetry/logging"
	"mercator-hq/rulekeeper/pkg/telemetry/metrics"
	"mercator-hq/rulekeeper/pkg/telemetry/tracing"
)

const (
	healthCheckTimeout = 2 * time.Second
	shutdownTimeout    = 5 * time.Second
)

// app holds the components shared by every command.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	collector *metrics.Collector
	tracer    *tracing.Tracer
	tracker   *health.PassTracker
	observer  engine.Observer
	out       io.Writer

	// repo is set when rules are synced from Git.
	repo *gitsource.Repository
}

// newApp loads configuration, applies global flag overrides and builds the
// logger and observers. metricsAddr enables the admin server when set.
func newApp(cmd *cobra.Command, metricsAddr string) (*app, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	if rulesPath != "" {
		cfg.Rules.Path = rulesPath
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddress = metricsAddr
	}

	if err := config.Validate(cfg); err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
		Writer:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, cli.NewConfigError("logging", err.Error())
	}

	tracer, err := tracing.New(&cfg.Tracing)
	if err != nil {
		return nil, cli.NewCommandError(cmd.Name(), fmt.Errorf("failed to initialize tracing: %w", err))
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		collector: metrics.NewCollector(&cfg.Metrics, nil),
		tracer:    tracer,
		tracker:   health.NewPassTracker(),
		out:       cmd.OutOrStdout(),
	}

	observers := []engine.Observer{a.collector, tracing.NewObserver(tracer), a.tracker}
	if verbose {
		observers = append(observers, cli.NewPassProgress(cmd.ErrOrStderr()))
	}
	a.observer = engine.Observers(observers...)

	if cfg.Rules.Git.Enabled() {
		if err := a.syncRules(cmd.Context()); err != nil {
			a.close()
			return nil, cli.NewCommandError(cmd.Name(), err)
		}
	}

	return a, nil
}

// syncRules clones or pulls the rules repository and points the rules path
// at its checkout.
func (a *app) syncRules(ctx context.Context) error {
	manager, err := a.secretManager()
	if err != nil {
		return fmt.Errorf("failed to configure secrets: %w", err)
	}

	auth := &a.cfg.Rules.Git.Auth
	if err := manager.ResolveAll(ctx, &auth.Token, &auth.SSHKeyPassphrase); err != nil {
		return err
	}

	repo, err := gitsource.NewRepository(&a.cfg.Rules.Git, a.logger)
	if err != nil {
		return fmt.Errorf("failed to configure rules repository: %w", err)
	}

	commit, err := repo.Sync(ctx)
	if err != nil {
		return fmt.Errorf("failed to sync rules repository: %w", err)
	}

	a.logger.Info("rules synced from git",
		"commit_sha", commit.Short(),
		"branch", commit.Branch,
		"path", repo.RulesPath(),
	)

	a.repo = repo
	a.cfg.Rules.Path = repo.RulesPath()
	return nil
}

// close flushes pending spans.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Warn("failed to flush traces", "error", err)
	}
}

// newSource creates the directory rule source described by the config.
func (a *app) newSource() (*loader.DirectorySource, error) {
	return loader.NewDirectorySource(&loader.Config{
		Path:        a.cfg.Rules.Path,
		Extensions:  a.cfg.Rules.Extensions,
		MaxFileSize: a.cfg.Rules.MaxFileSize,
	}, rulefile.NewCompiler(nil), a.logger)
}

// newEngine loads every rule and returns a ready engine.
func (a *app) newEngine() (*engine.Engine, error) {
	source, err := a.newSource()
	if err != nil {
		return nil, cli.NewConfigError("rules", err.Error())
	}

	eng, err := engine.New(&engine.Config{Observer: a.observer}, source, a.logger)
	if err != nil {
		return nil, err
	}

	a.collector.SetRulesLoaded(eng.Rules().Size())
	return eng, nil
}

// secretManager resolves secrets from the environment first, then from
// the secrets directory when one is configured.
func (a *app) secretManager() (*secrets.Manager, error) {
	providers := []secrets.Provider{secrets.NewEnvProvider(a.cfg.Secrets.EnvPrefix)}

	if a.cfg.Secrets.Dir != "" {
		files, err := secrets.NewFileProvider(a.cfg.Secrets.Dir)
		if err != nil {
			return nil, err
		}
		providers = append(providers, files)
	}

	return secrets.NewManager(a.logger, providers...), nil
}

// refreshRules pulls the rules repository and swaps in a new engine when
// rule files changed. Failures keep the current engine.
func (a *app) refreshRules(ctx context.Context, poller *gitsource.Poller, current *atomic.Pointer[engine.Engine]) {
	changed, err := poller.Check(ctx)
	if err != nil {
		a.logger.Warn("failed to pull rules repository", "error", err)
		return
	}
	if !changed {
		return
	}

	next, err := a.newEngine()
	if err != nil {
		a.logger.Warn("keeping previous rules", "error", err)
		return
	}
	current.Store(next)
	a.logger.Info("rules reloaded from git", "commit_sha", poller.LastCommit())
}

// runPass seeds a fresh state and processes it.
func (a *app) runPass(ctx context.Context, eng *engine.Engine, seed map[string]any) (*cli.PassReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	state := eng.CreateState()
	for key, value := range seed {
		if err := state.Set(key, value); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	_, err := eng.ProcessState(state)
	return cli.NewPassReport(eng, state, time.Since(start), err), nil
}

// writeReport prints v in the requested format.
func (a *app) writeReport(format cli.OutputFormat, v any) error {
	return cli.NewFormatter(format).FormatTo(a.out, v)
}

// serveAdmin starts the metrics and health server when metrics are
// enabled. The returned channel is closed once the server has stopped.
func (a *app) serveAdmin(ctx context.Context, current func() *engine.Engine) (<-chan struct{}, error) {
	done := make(chan struct{})
	if !a.cfg.Metrics.Enabled {
		close(done)
		return done, nil
	}

	checker := health.New(healthCheckTimeout)
	checker.RegisterCheck("rules", health.RulesLoadedCheck(current))
	checker.RegisterCheck("last_pass", a.tracker.Check(0))

	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, a.collector.Handler())
	health.Register(mux, checker, Version, GitCommit, BuildDate)

	srvCfg := server.DefaultConfig()
	srvCfg.ListenAddress = a.cfg.Metrics.ListenAddress
	if tlsCfg := a.cfg.Metrics.TLS; tlsCfg.Enabled() {
		srvCfg.TLS = &server.TLSConfig{
			CertFile:   tlsCfg.CertFile,
			KeyFile:    tlsCfg.KeyFile,
			MinVersion: tlsCfg.MinVersion,
		}
	}
	srv, err := server.NewServer(srvCfg, mux, a.logger)
	if err != nil {
		return nil, cli.NewConfigError("metrics", err.Error())
	}

	go func() {
		defer close(done)
		if err := srv.Start(ctx); err != nil {
			a.logger.Error("admin server failed", "error", err)
		}
	}()

	return done, nil
}

// outcome maps a pass report to the command result.
func outcome(report *cli.PassReport, failOnError bool) error {
	if report.Aborted != "" {
		return cli.NewExitError(cli.ExitFailure, fmt.Errorf("pass aborted: %s", report.Aborted))
	}
	if failOnError && report.Failures {
		return cli.NewExitError(cli.ExitRuleFailures, errors.New("one or more rules failed"))
	}
	return nil
}

// loadSeed reads the initial state items from a YAML mapping file and
// key=value assignments. Assigned values are parsed as YAML scalars, so
// "count=3" sets an integer and "name=ada" a string. Assignments override
// file items.
func loadSeed(path string, assignments []string) (map[string]any, error) {
	seed := make(map[string]any)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, cli.NewConfigError("state", fmt.Sprintf("failed to read state file: %v", err))
		}
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return nil, cli.NewConfigError("state", fmt.Sprintf("state file must be a YAML mapping: %v", err))
		}
		if seed == nil {
			seed = make(map[string]any)
		}
	}

	for _, assignment := range assignments {
		key, raw, ok := strings.Cut(assignment, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, cli.NewConfigError("set", fmt.Sprintf("expected key=value, got %q", assignment))
		}

		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
			value = raw
		}
		seed[key] = value
	}

	return seed, nil
}
