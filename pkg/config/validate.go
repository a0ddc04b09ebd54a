package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "rules.path").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration. All field errors are
// collected and returned together as a ValidationError.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateRules(&cfg.Rules)...)
	errs = append(errs, validateGit(&cfg.Rules.Git)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateMetrics(&cfg.Metrics)...)
	errs = append(errs, validateTracing(&cfg.Tracing)...)
	errs = append(errs, validateSchedule(&cfg.Schedule)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateRules(cfg *RulesConfig) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(cfg.Path) == "" {
		errs = append(errs, FieldError{
			Field:   "rules.path",
			Message: "rules path is required",
		})
	}

	for _, ext := range cfg.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, FieldError{
				Field:   "rules.extensions",
				Message: fmt.Sprintf("extension %q must start with a dot", ext),
			})
		}
	}

	if cfg.MaxFileSize < 0 {
		errs = append(errs, FieldError{
			Field:   "rules.max_file_size",
			Message: fmt.Sprintf("max file size must be positive, got %d", cfg.MaxFileSize),
		})
	}

	if cfg.DebounceInterval < 0 {
		errs = append(errs, FieldError{
			Field:   "rules.debounce_interval",
			Message: fmt.Sprintf("debounce interval must not be negative, got %s", cfg.DebounceInterval),
		})
	}

	return errs
}

func validateGit(cfg *GitConfig) []FieldError {
	if !cfg.Enabled() {
		return nil
	}

	var errs []FieldError

	if cfg.Branch == "" {
		errs = append(errs, FieldError{
			Field:   "rules.git.branch",
			Message: "branch is required when a git repository is configured",
		})
	}

	if filepath.IsAbs(cfg.Path) || strings.HasPrefix(filepath.Clean(cfg.Path), "..") {
		errs = append(errs, FieldError{
			Field:   "rules.git.path",
			Message: fmt.Sprintf("path %q must stay inside the repository", cfg.Path),
		})
	}

	if cfg.Depth < 0 {
		errs = append(errs, FieldError{
			Field:   "rules.git.depth",
			Message: fmt.Sprintf("depth must not be negative, got %d", cfg.Depth),
		})
	}

	if cfg.PollInterval < time.Second {
		errs = append(errs, FieldError{
			Field:   "rules.git.poll_interval",
			Message: fmt.Sprintf("poll interval must be at least 1s, got %s", cfg.PollInterval),
		})
	}

	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "rules.git.timeout",
			Message: fmt.Sprintf("timeout must be positive, got %s", cfg.Timeout),
		})
	}

	switch cfg.Auth.Type {
	case "none":
	case "token":
		if cfg.Auth.Token == "" {
			errs = append(errs, FieldError{
				Field:   "rules.git.auth.token",
				Message: "token is required for token authentication",
			})
		}
	case "ssh":
		if cfg.Auth.SSHKeyPath == "" {
			errs = append(errs, FieldError{
				Field:   "rules.git.auth.ssh_key_path",
				Message: "ssh key path is required for ssh authentication",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "rules.git.auth.type",
			Message: fmt.Sprintf("invalid auth type %q: must be 'none', 'token', or 'ssh'", cfg.Auth.Type),
		})
	}

	return errs
}

func validateLogging(cfg *LoggingConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Level == "" {
		errs = append(errs, FieldError{
			Field:   "logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[strings.ToLower(cfg.Level)] {
		errs = append(errs, FieldError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if cfg.Format == "" {
		errs = append(errs, FieldError{
			Field:   "logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[strings.ToLower(cfg.Format)] {
		errs = append(errs, FieldError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text', or 'console'", cfg.Format),
		})
	}

	return errs
}

func validateMetrics(cfg *MetricsConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError

	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "metrics.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}

	if !strings.HasPrefix(cfg.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "metrics.path",
			Message: fmt.Sprintf("metrics path %q must start with '/'", cfg.Path),
		})
	}

	if cfg.Namespace == "" {
		errs = append(errs, FieldError{
			Field:   "metrics.namespace",
			Message: "metrics namespace is required when metrics are enabled",
		})
	}

	if cfg.TLS.Enabled() {
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{
				Field:   "metrics.tls",
				Message: "cert_file and key_file must be set together",
			})
		}
		if v := cfg.TLS.MinVersion; v != "" && v != "1.2" && v != "1.3" {
			errs = append(errs, FieldError{
				Field:   "metrics.tls.min_version",
				Message: fmt.Sprintf("invalid TLS version %q: must be '1.2' or '1.3'", v),
			})
		}
	}

	return errs
}

func validateTracing(cfg *TracingConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError

	if cfg.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}

	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
	if !validSamplers[cfg.Sampler] {
		errs = append(errs, FieldError{
			Field:   "tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Sampler),
		})
	}

	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		errs = append(errs, FieldError{
			Field:   "tracing.sample_ratio",
			Message: fmt.Sprintf("sample ratio must be between 0.0 and 1.0, got %g", cfg.SampleRatio),
		})
	}

	return errs
}

func validateSchedule(cfg *ScheduleConfig) []FieldError {
	if cfg.Cron == "" {
		return nil
	}

	if _, err := cron.ParseStandard(cfg.Cron); err != nil {
		return []FieldError{{
			Field:   "schedule.cron",
			Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Cron, err),
		}}
	}
	return nil
}
