/*
Package cli provides command-line interface utilities for rulekeeper.

The cli package includes output formatters, pass reports, a progress
printer and the exit code mapping used by the rulekeeper command.

Output Formatting:

Reports render as text or JSON:

	formatter := cli.NewFormatter(cli.FormatJSON)
	report := cli.NewPassReport(eng, state, elapsed, err)
	if err := formatter.FormatTo(os.Stdout, report); err != nil {
		return err
	}

Values implementing TextWriter (PassReport, RuleList, ValidationReport)
render themselves under the text formatter.

Progress:

PassProgress is an engine.Observer that prints one line per rule:

	cfg := engine.DefaultConfig()
	cfg.Observer = cli.NewPassProgress(os.Stderr)

Exit Codes:

ExitCode maps command errors to process exit codes: ConfigError exits
with ExitConfig and ExitError carries its own code.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
