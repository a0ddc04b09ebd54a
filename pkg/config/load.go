package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values and validates the result. Environment
// variables are not consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies RULEKEEPER_* environment variable overrides. An empty path skips
// the file and starts from the defaults.
//
// The loading sequence is:
// 1. Load YAML from file (if any)
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Unparseable boolean and duration values are ignored.
func applyEnvOverrides(cfg *Config) {
	// Rules overrides
	if val := os.Getenv("RULEKEEPER_RULES_PATH"); val != "" {
		cfg.Rules.Path = val
	}
	if val := os.Getenv("RULEKEEPER_RULES_WATCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Rules.Watch = b
		}
	}
	if val := os.Getenv("RULEKEEPER_RULES_DEBOUNCE_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Rules.DebounceInterval = d
		}
	}

	// Git overrides
	if val := os.Getenv("RULEKEEPER_GIT_REPOSITORY"); val != "" {
		cfg.Rules.Git.Repository = val
	}
	if val := os.Getenv("RULEKEEPER_GIT_BRANCH"); val != "" {
		cfg.Rules.Git.Branch = val
	}
	if val := os.Getenv("RULEKEEPER_GIT_TOKEN"); val != "" {
		cfg.Rules.Git.Auth.Token = val
		if cfg.Rules.Git.Auth.Type == DefaultGitAuthType {
			cfg.Rules.Git.Auth.Type = "token"
		}
	}

	// Logging overrides
	if val := os.Getenv("RULEKEEPER_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("RULEKEEPER_LOG_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}

	// Metrics overrides
	if val := os.Getenv("RULEKEEPER_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("RULEKEEPER_METRICS_LISTEN_ADDRESS"); val != "" {
		cfg.Metrics.ListenAddress = val
	}

	// Tracing overrides
	if val := os.Getenv("RULEKEEPER_TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Tracing.Enabled = b
		}
	}
	if val := os.Getenv("RULEKEEPER_TRACING_ENDPOINT"); val != "" {
		cfg.Tracing.Endpoint = val
	}
	if val := os.Getenv("RULEKEEPER_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Tracing.SampleRatio = f
		}
	}

	// Schedule overrides
	if val := os.Getenv("RULEKEEPER_SCHEDULE_CRON"); val != "" {
		cfg.Schedule.Cron = val
	}
}
