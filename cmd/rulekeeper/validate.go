package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/rulekeeper/pkg/cli"
	"mercator-hq/rulekeeper/pkg/engine"
)

var validateFlags struct {
	format string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate rule files without running them",
	Long: `Compile every rule file on the search path and report the outcome per file.

Each file is checked on its own, so one bad file does not hide errors in
the others. When every file compiles, rule names are also checked for
duplicates.

Examples:
  rulekeeper validate --rules ./rules
  rulekeeper validate --format json`,
	RunE: validateRules,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
}

func validateRules(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(validateFlags.format)
	if err != nil {
		return err
	}

	a, err := newApp(cmd, "")
	if err != nil {
		return err
	}
	defer a.close()

	source, err := a.newSource()
	if err != nil {
		return cli.NewConfigError("rules", err.Error())
	}

	files, err := source.Files()
	if err != nil {
		return cli.NewCommandError("validate", err)
	}

	report := &cli.ValidationReport{Files: []cli.FileCheck{}}
	var rules []*engine.Rule
	for _, file := range files {
		rule, err := source.LoadFile(file)
		report.Add(file, rule, err)
		if err == nil {
			rules = append(rules, rule)
		}
	}

	if err := a.writeReport(format, report); err != nil {
		return err
	}

	if invalid := report.Invalid(); invalid > 0 {
		return cli.NewExitError(cli.ExitFailure, fmt.Errorf("%d of %d rule files are invalid", invalid, len(files)))
	}

	if err := engine.NewRuleSet().AddAll(rules); err != nil {
		return cli.NewExitError(cli.ExitFailure, err)
	}

	return nil
}
