package config

import "time"

// Config is the root configuration structure for rulekeeper.
type Config struct {
	// Rules configures where rule files are discovered and how they are
	// reloaded.
	Rules RulesConfig `yaml:"rules"`

	// Logging configures the structured logger handed to the engine.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing configures OpenTelemetry spans for passes and rules.
	Tracing TracingConfig `yaml:"tracing"`

	// Schedule configures cron-driven passes.
	Schedule ScheduleConfig `yaml:"schedule"`

	// Secrets configures how ${secret:name} references are resolved.
	Secrets SecretsConfig `yaml:"secrets"`
}

// RulesConfig contains configuration for rule discovery.
type RulesConfig struct {
	// Path is a list of directories separated by the OS path list
	// separator (":" on Unix).
	// Default: "rules"
	Path string `yaml:"path"`

	// Extensions are the accepted rule file extensions.
	// Default: [".yaml", ".yml"]
	Extensions []string `yaml:"extensions"`

	// MaxFileSize is the maximum rule file size in bytes.
	// Default: 1048576 (1MB)
	MaxFileSize int64 `yaml:"max_file_size"`

	// Watch enables re-running passes when rule files change.
	// Default: false
	Watch bool `yaml:"watch"`

	// DebounceInterval is the quiet period after rule file events before
	// the engine is rebuilt.
	// Default: 100ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`

	// Git syncs rule files from a remote repository. Leaving
	// Git.Repository empty keeps rules local.
	Git GitConfig `yaml:"git"`
}

// GitConfig contains configuration for a Git-backed rule source.
type GitConfig struct {
	// Repository is the clone URL or a local repository path.
	Repository string `yaml:"repository"`

	// Branch is the branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path is the rules directory relative to the repository root.
	// Default: "" (repository root)
	Path string `yaml:"path"`

	// LocalPath is where the repository is cloned.
	// Default: "<tmp>/rulekeeper-rules"
	LocalPath string `yaml:"local_path"`

	// Depth limits clone history. Zero clones everything.
	Depth int `yaml:"depth"`

	// CleanOnStart removes an existing clone before cloning again.
	CleanOnStart bool `yaml:"clean_on_start"`

	// PollInterval is how often watch mode pulls for new commits.
	// Default: 30s
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds each clone or pull.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// Auth configures repository credentials.
	Auth GitAuthConfig `yaml:"auth"`
}

// Enabled reports whether rules are synced from Git.
func (g GitConfig) Enabled() bool {
	return g.Repository != ""
}

// GitAuthConfig contains Git credentials.
type GitAuthConfig struct {
	// Type is "none", "token" or "ssh".
	// Default: "none"
	Type string `yaml:"type"`

	// Token is an HTTPS access token used when Type is "token". It may be
	// a ${secret:name} reference.
	Token string `yaml:"token"`

	// SSHKeyPath is a private key file used when Type is "ssh".
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKeyPassphrase unlocks an encrypted SSH key.
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// LoggingConfig contains configuration for structured logging.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn" or "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format: "json", "text" or "console".
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource adds the source file and line to every log record.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains configuration for Prometheus metrics.
type MetricsConfig struct {
	// Enabled exposes engine metrics over HTTP.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the host:port of the metrics server.
	// Default: ":9090"
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path serving metrics.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the Prometheus metric namespace.
	// Default: "rulekeeper"
	Namespace string `yaml:"namespace"`

	// Subsystem is the Prometheus metric subsystem.
	// Default: "engine"
	Subsystem string `yaml:"subsystem"`

	// TLS serves the admin endpoints over HTTPS when a certificate is set.
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig contains certificate configuration for the admin server.
type TLSConfig struct {
	// CertFile is the PEM-encoded certificate. Empty disables TLS.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the PEM-encoded private key.
	KeyFile string `yaml:"key_file"`

	// MinVersion is "1.2" or "1.3".
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`
}

// Enabled reports whether TLS is configured.
func (t TLSConfig) Enabled() bool {
	return t.CertFile != "" || t.KeyFile != ""
}

// TracingConfig contains configuration for OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled turns on span export.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Sampler is the sampling strategy: "always", "never" or "ratio".
	// Default: "always"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of passes sampled by the "ratio" sampler.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName is the service.name resource attribute.
	// Default: "rulekeeper"
	ServiceName string `yaml:"service_name"`

	// Timeout bounds each export to the collector.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// SecretsConfig contains configuration for secret references in Git
// settings.
type SecretsConfig struct {
	// EnvPrefix is prepended to environment variable names.
	// Default: "RULEKEEPER_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// Dir is a directory of secret files, one per secret. Empty disables
	// file secrets.
	Dir string `yaml:"dir"`
}

// ScheduleConfig contains configuration for scheduled passes.
type ScheduleConfig struct {
	// Cron is a standard five-field cron expression or a descriptor such
	// as "@every 1m". Empty disables scheduling.
	Cron string `yaml:"cron"`

	// RunOnStart runs one pass immediately when the scheduler starts.
	// Default: true
	RunOnStart *bool `yaml:"run_on_start"`
}

// RunsOnStart reports whether a pass runs when the scheduler starts.
func (s ScheduleConfig) RunsOnStart() bool {
	return s.RunOnStart == nil || *s.RunOnStart
}
