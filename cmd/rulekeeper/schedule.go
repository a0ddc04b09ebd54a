package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/spf13/cobra"

	"mercator-hq/rulekeeper/pkg/cli"
	"mercator-hq/rulekeeper/pkg/engine"
	"mercator-hq/rulekeeper/pkg/gitsource"
	"mercator-hq/rulekeeper/pkg/schedule"
)

var scheduleFlags struct {
	cron        string
	stateFile   string
	set         []string
	format      string
	metricsAddr string
	noInitial   bool
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run passes on a cron schedule",
	Long: `Load the rules once and run a pass on every tick of a cron schedule until
interrupted. A tick that arrives while the previous pass is still running
is skipped. When rules come from a Git repository, every tick pulls first
and rebuilds the engine if rule files changed.

The schedule is a standard five-field cron expression or a descriptor such
as "@every 1m" or "@hourly". It defaults to schedule.cron from the config.

Examples:
  rulekeeper schedule --cron "*/5 * * * *"
  rulekeeper schedule --cron "@every 30s" --metrics-addr :9090`,
	RunE: scheduleRules,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().StringVar(&scheduleFlags.cron, "cron", "", "cron expression (overrides schedule.cron)")
	scheduleCmd.Flags().StringVar(&scheduleFlags.stateFile, "state", "", "YAML mapping of initial state items")
	scheduleCmd.Flags().StringArrayVar(&scheduleFlags.set, "set", nil, "initial state item as key=value (repeatable)")
	scheduleCmd.Flags().StringVar(&scheduleFlags.format, "format", "text", "output format: text, json")
	scheduleCmd.Flags().StringVar(&scheduleFlags.metricsAddr, "metrics-addr", "", "serve metrics and health probes on this address")
	scheduleCmd.Flags().BoolVar(&scheduleFlags.noInitial, "no-initial-run", false, "wait for the first tick instead of running immediately")
}

func scheduleRules(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(scheduleFlags.format)
	if err != nil {
		return err
	}

	seed, err := loadSeed(scheduleFlags.stateFile, scheduleFlags.set)
	if err != nil {
		return err
	}

	a, err := newApp(cmd, scheduleFlags.metricsAddr)
	if err != nil {
		return err
	}
	defer a.close()

	cronExpr := a.cfg.Schedule.Cron
	if scheduleFlags.cron != "" {
		cronExpr = scheduleFlags.cron
	}
	if cronExpr == "" {
		return cli.NewConfigError("schedule.cron", "a cron expression is required (--cron or schedule.cron)")
	}

	eng, err := a.newEngine()
	if err != nil {
		return cli.NewCommandError("schedule", err)
	}

	var current atomic.Pointer[engine.Engine]
	current.Store(eng)

	var poller *gitsource.Poller
	if a.repo != nil {
		poller, err = gitsource.NewPoller(a.repo, &gitsource.PollerConfig{
			Interval:   a.cfg.Rules.Git.PollInterval,
			Extensions: a.cfg.Rules.Extensions,
		}, a.logger)
		if err != nil {
			return cli.NewCommandError("schedule", err)
		}
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	adminDone, err := a.serveAdmin(ctx, current.Load)
	if err != nil {
		return err
	}

	// Reports are written from cron goroutines.
	var outMu sync.Mutex
	runner := schedule.RunnerFunc(func(ctx context.Context) error {
		if poller != nil {
			a.refreshRules(ctx, poller, &current)
		}

		report, err := a.runPass(ctx, current.Load(), seed)
		if err != nil {
			return err
		}

		outMu.Lock()
		defer outMu.Unlock()
		if err := a.writeReport(format, report); err != nil {
			return err
		}
		return outcome(report, false)
	})

	scheduler, err := schedule.New(&schedule.Config{
		Cron:       cronExpr,
		RunOnStart: a.cfg.Schedule.RunsOnStart() && !scheduleFlags.noInitial,
	}, runner, a.logger)
	if err != nil {
		return cli.NewConfigError("schedule.cron", err.Error())
	}

	if err := scheduler.Start(ctx); err != nil {
		return cli.NewCommandError("schedule", err)
	}
	if next := scheduler.NextRun(); next != nil {
		a.logger.Info("next scheduled pass", "at", next)
	}

	<-ctx.Done()
	scheduler.Stop()
	<-adminDone

	if scheduler.Runs() > 0 && scheduler.Failures() == scheduler.Runs() {
		return cli.NewExitError(cli.ExitFailure, fmt.Errorf("all %d scheduled passes failed", scheduler.Runs()))
	}
	return nil
}
