// Package config provides configuration management for rulekeeper.
//
// Configuration is read from a YAML file, completed with defaults and
// optionally overridden by environment variables.
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("rulekeeper.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("rulekeeper.yaml")
//
// # Environment Variable Overrides
//
//   - RULEKEEPER_RULES_PATH overrides rules.path
//   - RULEKEEPER_RULES_WATCH overrides rules.watch
//   - RULEKEEPER_RULES_DEBOUNCE_INTERVAL overrides rules.debounce_interval
//   - RULEKEEPER_GIT_REPOSITORY overrides rules.git.repository
//   - RULEKEEPER_GIT_BRANCH overrides rules.git.branch
//   - RULEKEEPER_GIT_TOKEN sets rules.git.auth.token and switches auth to "token"
//   - RULEKEEPER_LOG_LEVEL overrides logging.level
//   - RULEKEEPER_LOG_FORMAT overrides logging.format
//   - RULEKEEPER_METRICS_ENABLED overrides metrics.enabled
//   - RULEKEEPER_METRICS_LISTEN_ADDRESS overrides metrics.listen_address
//   - RULEKEEPER_TRACING_ENABLED overrides tracing.enabled
//   - RULEKEEPER_TRACING_ENDPOINT overrides tracing.endpoint
//   - RULEKEEPER_TRACING_SAMPLE_RATIO overrides tracing.sample_ratio
//   - RULEKEEPER_SCHEDULE_CRON overrides schedule.cron
//
// # Example Configuration
//
//	rules:
//	  path: "rules:/etc/rulekeeper/rules"
//	  extensions: [".yaml", ".yml"]
//	  max_file_size: 1048576
//	  watch: false
//	  debounce_interval: 100ms
//	  git:
//	    repository: "https://github.com/acme/rules.git"
//	    branch: main
//	    path: rules
//	    poll_interval: 30s
//	    auth:
//	      type: token
//	      token: "${secret:git-token}"
//	logging:
//	  level: info
//	  format: text
//	metrics:
//	  enabled: true
//	  listen_address: ":9090"
//	schedule:
//	  cron: "@every 5m"
//	  run_on_start: true
//	secrets:
//	  dir: /var/run/secrets/rulekeeper
package config
