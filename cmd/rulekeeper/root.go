package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/rulekeeper/pkg/cli"
)

var (
	// Global flags
	cfgFile   string
	rulesPath string
	logLevel  string
	logFormat string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "rulekeeper",
	Short: "Rulekeeper - sequential rule engine",
	Long: `Rulekeeper loads prioritized rules from YAML files and runs them against a
shared state.

Each rule declares requirements on the state, an optional guard and the logic
to run. Rules run in priority order; a failing rule is recorded and the pass
continues, while a failing guard aborts the pass.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVarP(&rulesPath, "rules", "r", "", "rule search path, directories separated by the OS list separator")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override log format (json, text, console)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print every rule as it runs")
}
