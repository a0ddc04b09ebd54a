package main

import (
	"github.com/spf13/cobra"

	"mercator-hq/rulekeeper/pkg/cli"
)

var runFlags struct {
	stateFile   string
	set         []string
	format      string
	failOnError bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one pass over a fresh state",
	Long: `Load every rule, run one pass over a fresh state and print the report.

The report lists the rules loaded and processed, whether any rule failed,
each result's output, error and duration, and the final state items.

Examples:
  # Run the rules in ./rules
  rulekeeper run --rules ./rules

  # Seed the state
  rulekeeper run --state seed.yaml --set user=ada --set retries=3

  # JSON report, non-zero exit when a rule failed
  rulekeeper run --format json --fail-on-error`,
	RunE: runPassCommand,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.stateFile, "state", "", "YAML mapping of initial state items")
	runCmd.Flags().StringArrayVar(&runFlags.set, "set", nil, "initial state item as key=value (repeatable)")
	runCmd.Flags().StringVar(&runFlags.format, "format", "text", "output format: text, json")
	runCmd.Flags().BoolVar(&runFlags.failOnError, "fail-on-error", false, "exit with status 3 when a rule failed")
}

func runPassCommand(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(runFlags.format)
	if err != nil {
		return err
	}

	seed, err := loadSeed(runFlags.stateFile, runFlags.set)
	if err != nil {
		return err
	}

	a, err := newApp(cmd, "")
	if err != nil {
		return err
	}
	defer a.close()

	eng, err := a.newEngine()
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	report, err := a.runPass(ctx, eng, seed)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	if err := a.writeReport(format, report); err != nil {
		return err
	}

	return outcome(report, runFlags.failOnError)
}
