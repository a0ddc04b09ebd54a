package main

import (
	"context"
	"sync/atomic"

	"github.com/spf13/cobra"

	"mercator-hq/rulekeeper/pkg/cli"
	"mercator-hq/rulekeeper/pkg/engine"
	"mercator-hq/rulekeeper/pkg/gitsource"
	"mercator-hq/rulekeeper/pkg/loader"
)

var watchFlags struct {
	stateFile   string
	set         []string
	format      string
	metricsAddr string
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run a pass whenever rule files change",
	Long: `Run one pass, then watch the rule directories and run again after every
change. When rules come from a Git repository, the repository is polled
instead. Each change builds a new engine from the current files; when the
new rules fail to load, the previous engine is kept.

Examples:
  rulekeeper watch --rules ./rules
  rulekeeper watch --metrics-addr :9090`,
	RunE: watchRules,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchFlags.stateFile, "state", "", "YAML mapping of initial state items")
	watchCmd.Flags().StringArrayVar(&watchFlags.set, "set", nil, "initial state item as key=value (repeatable)")
	watchCmd.Flags().StringVar(&watchFlags.format, "format", "text", "output format: text, json")
	watchCmd.Flags().StringVar(&watchFlags.metricsAddr, "metrics-addr", "", "serve metrics and health probes on this address")
}

func watchRules(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(watchFlags.format)
	if err != nil {
		return err
	}

	seed, err := loadSeed(watchFlags.stateFile, watchFlags.set)
	if err != nil {
		return err
	}

	a, err := newApp(cmd, watchFlags.metricsAddr)
	if err != nil {
		return err
	}
	defer a.close()

	eng, err := a.newEngine()
	if err != nil {
		return cli.NewCommandError("watch", err)
	}

	var current atomic.Pointer[engine.Engine]
	current.Store(eng)

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	adminDone, err := a.serveAdmin(ctx, current.Load)
	if err != nil {
		return err
	}

	pass := func(ctx context.Context, eng *engine.Engine) error {
		report, err := a.runPass(ctx, eng, seed)
		if err != nil {
			return err
		}
		return a.writeReport(format, report)
	}

	if err := pass(ctx, eng); err != nil {
		return cli.NewCommandError("watch", err)
	}

	watcher, err := a.newRuleWatcher(eng)
	if err != nil {
		return cli.NewCommandError("watch", err)
	}

	err = watcher.Watch(ctx, func(ctx context.Context) error {
		next, err := a.newEngine()
		if err != nil {
			a.logger.Warn("keeping previous rules", "error", err)
			return err
		}
		current.Store(next)
		return pass(ctx, next)
	})

	if stopErr := watcher.Stop(); stopErr != nil {
		a.logger.Warn("failed to stop watcher", "error", stopErr)
	}
	stop()
	<-adminDone

	if err != nil {
		return cli.NewCommandError("watch", err)
	}
	return nil
}

// ruleWatcher calls back whenever the loaded rules may be stale.
type ruleWatcher interface {
	Watch(ctx context.Context, onChange func(ctx context.Context) error) error
	Stop() error
}

// newRuleWatcher polls the rules repository when rules come from Git and
// watches the rule directories otherwise.
func (a *app) newRuleWatcher(eng *engine.Engine) (ruleWatcher, error) {
	if a.repo != nil {
		return gitsource.NewPoller(a.repo, &gitsource.PollerConfig{
			Interval:   a.cfg.Rules.Git.PollInterval,
			Extensions: a.cfg.Rules.Extensions,
		}, a.logger)
	}

	return loader.NewFileWatcher(&loader.WatchConfig{
		Paths:            eng.Path(),
		Extensions:       a.cfg.Rules.Extensions,
		DebounceInterval: a.cfg.Rules.DebounceInterval,
	}, a.logger)
}
