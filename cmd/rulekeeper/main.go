// Rulekeeper runs prioritized rule files against a state.
//
// Rules are YAML files named *_rule.yaml found on a directory search path.
// Each pass creates a fresh state, runs every rule whose requirements and
// guard hold in priority order, and reports the results.
//
// Usage:
//
//	# Run one pass and print the report
//	rulekeeper run --rules ./rules --set user=ada
//
//	# Seed the state from a YAML file, fail the process when a rule fails
//	rulekeeper run --state seed.yaml --fail-on-error --format json
//
//	# List rules in execution order
//	rulekeeper list --rules ./rules
//
//	# Check rule files without running them
//	rulekeeper validate --rules ./rules
//
//	# Re-run whenever rule files change
//	rulekeeper watch --rules ./rules --metrics-addr :9090
//
//	# Run passes on a cron schedule
//	rulekeeper schedule --cron "@every 1m"
package main

import "os"

func main() {
	os.Exit(Execute())
}
