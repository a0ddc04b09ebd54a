package main

import (
	"github.com/spf13/cobra"

	"mercator-hq/rulekeeper/pkg/cli"
)

var listFlags struct {
	format string
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules in execution order",
	Long: `Load every rule and print name, priority, concurrency and requirements in
the order a pass would run them.

Examples:
  rulekeeper list --rules ./rules
  rulekeeper list --format json`,
	RunE: listRules,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listFlags.format, "format", "text", "output format: text, json")
}

func listRules(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(listFlags.format)
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
		return cli.NewCommandError("list", err)
	}

	return a.writeReport(format, cli.NewRuleList(eng))
}
