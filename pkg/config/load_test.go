package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rulekeeper.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
rules:
  path: "rules:/etc/rulekeeper/rules"
  extensions: [".yaml"]
  debounce_interval: 250ms
logging:
  level: debug
  format: json
metrics:
  enabled: true
  listen_address: "127.0.0.1:9100"
schedule:
  cron: "@every 1m"
  run_on_start: false
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}

	if cfg.Rules.Path != "rules:/etc/rulekeeper/rules" {
		t.Errorf("Rules.Path = %q, want %q", cfg.Rules.Path, "rules:/etc/rulekeeper/rules")
	}
	if len(cfg.Rules.Extensions) != 1 || cfg.Rules.Extensions[0] != ".yaml" {
		t.Errorf("Rules.Extensions = %v, want [.yaml]", cfg.Rules.Extensions)
	}
	if cfg.Rules.DebounceInterval != 250*time.Millisecond {
		t.Errorf("Rules.DebounceInterval = %v, want %v", cfg.Rules.DebounceInterval, 250*time.Millisecond)
	}
	if cfg.Rules.MaxFileSize != DefaultMaxFileSize {
		t.Errorf("Rules.MaxFileSize = %d, want %d", cfg.Rules.MaxFileSize, DefaultMaxFileSize)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want level debug format json", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics = %+v, want enabled with default path", cfg.Metrics)
	}
	if cfg.Schedule.RunsOnStart() {
		t.Error("Schedule.RunsOnStart() = true, want false")
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadConfig() error = %v, want %v", err, os.ErrNotExist)
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "rules:\n  path: [\n")

	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig() error = nil, want error for malformed YAML")
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: verbose
schedule:
  cron: "not a cron"
`)

	_, err := LoadConfig(path)

	var validationErr ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("LoadConfig() error = %v, want ValidationError", err)
	}
	if len(validationErr.Errors) != 2 {
		t.Errorf("len(Errors) = %d, want 2: %v", len(validationErr.Errors), validationErr.Errors)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "rules:\n  path: from-file\n")

	t.Setenv("RULEKEEPER_RULES_PATH", "from-env")
	t.Setenv("RULEKEEPER_RULES_WATCH", "true")
	t.Setenv("RULEKEEPER_RULES_DEBOUNCE_INTERVAL", "2s")
	t.Setenv("RULEKEEPER_GIT_REPOSITORY", "https://example.com/rules.git")
	t.Setenv("RULEKEEPER_GIT_TOKEN", "s3cret")
	t.Setenv("RULEKEEPER_LOG_LEVEL", "warn")
	t.Setenv("RULEKEEPER_LOG_FORMAT", "console")
	t.Setenv("RULEKEEPER_METRICS_ENABLED", "yes-please")
	t.Setenv("RULEKEEPER_METRICS_LISTEN_ADDRESS", ":9200")
	t.Setenv("RULEKEEPER_TRACING_ENABLED", "true")
	t.Setenv("RULEKEEPER_TRACING_ENDPOINT", "collector:4317")
	t.Setenv("RULEKEEPER_SCHEDULE_CRON", "*/5 * * * *")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v, want nil", err)
	}

	if cfg.Rules.Path != "from-env" {
		t.Errorf("Rules.Path = %q, want %q", cfg.Rules.Path, "from-env")
	}
	if !cfg.Rules.Watch {
		t.Error("Rules.Watch = false, want true")
	}
	if cfg.Rules.DebounceInterval != 2*time.Second {
		t.Errorf("Rules.DebounceInterval = %v, want 2s", cfg.Rules.DebounceInterval)
	}
	if cfg.Rules.Git.Repository != "https://example.com/rules.git" {
		t.Errorf("Rules.Git.Repository = %q, want override", cfg.Rules.Git.Repository)
	}
	if cfg.Rules.Git.Auth.Type != "token" || cfg.Rules.Git.Auth.Token != "s3cret" {
		t.Errorf("Rules.Git.Auth = %+v, want token auth", cfg.Rules.Git.Auth)
	}
	if cfg.Logging.Level != "warn" || cfg.Logging.Format != "console" {
		t.Errorf("Logging = %+v, want level warn format console", cfg.Logging)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true, want false for unparseable override")
	}
	if cfg.Metrics.ListenAddress != ":9200" {
		t.Errorf("Metrics.ListenAddress = %q, want %q", cfg.Metrics.ListenAddress, ":9200")
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.Endpoint != "collector:4317" {
		t.Errorf("Tracing = %+v, want enabled with endpoint collector:4317", cfg.Tracing)
	}
	if cfg.Schedule.Cron != "*/5 * * * *" {
		t.Errorf("Schedule.Cron = %q, want %q", cfg.Schedule.Cron, "*/5 * * * *")
	}
}

func TestLoadConfigWithEnvOverrides_NoFile(t *testing.T) {
	t.Setenv("RULEKEEPER_LOG_LEVEL", "loud")

	_, err := LoadConfigWithEnvOverrides("")
	if err == nil {
		t.Fatal("LoadConfigWithEnvOverrides() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "after environment overrides") {
		t.Errorf("error = %v, want mention of environment overrides", err)
	}
}
