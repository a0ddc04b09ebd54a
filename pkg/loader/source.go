package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"mercator-hq/rulekeeper/pkg/engine"
	"mercator-hq/rulekeeper/pkg/rulefile"
)

// RuleSuffix is the mandatory suffix of a rule file base name.
const RuleSuffix = "_rule"

// Config contains configuration for loading rules from directories.
type Config struct {
	// Path is a list of directories separated by the OS path list
	// separator (":" on Unix). Each directory is scanned non-recursively.
	Path string

	// Extensions are the accepted rule file extensions.
	// Default: [".yaml", ".yml"].
	Extensions []string

	// MaxFileSize is the maximum size of a rule file in bytes.
	// Default: 1MB.
	MaxFileSize int64
}

// DefaultConfig returns the default loader configuration.
func DefaultConfig() *Config {
	return &Config{
		Path:        "rules",
		Extensions:  []string{".yaml", ".yml"},
		MaxFileSize: 1024 * 1024,
	}
}

// Validate validates the loader configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return errors.New("rules path is required")
	}
	if len(c.Extensions) == 0 {
		return errors.New("at least one rule file extension is required")
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max file size must be > 0, got %d", c.MaxFileSize)
	}
	return nil
}

// DirectorySource loads one rule per matching file from a directory search
// path. It implements engine.RuleSource and engine.PathProvider.
type DirectorySource struct {
	config   *Config
	compiler *rulefile.Compiler
	logger   *slog.Logger
}

// NewDirectorySource creates a directory source. A nil compiler uses the
// default type registry.
func NewDirectorySource(config *Config, compiler *rulefile.Compiler, logger *slog.Logger) (*DirectorySource, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid loader config: %w", err)
	}

	if compiler == nil {
		compiler = rulefile.NewCompiler(nil)
	}

	if logger == nil {
		return nil, engine.ErrNilLogger
	}

	return &DirectorySource{
		config:   config,
		compiler: compiler,
		logger:   logger,
	}, nil
}

// Paths returns the expanded search directories in order.
func (s *DirectorySource) Paths() []string {
	var paths []string
	for _, dir := range filepath.SplitList(s.config.Path) {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		paths = append(paths, dir)
	}
	return paths
}

// Files returns the rule files found on the search path, directory by
// directory, each directory sorted by name. Missing directories are skipped.
func (s *DirectorySource) Files() ([]string, error) {
	var files []string

	for _, dir := range s.Paths() {
		info, err := os.Stat(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				s.logger.Debug("skipping missing rules directory", "path", dir)
				continue
			}
			return nil, &engine.LoadError{
				FilePath: dir,
				Message:  "failed to access directory",
				Cause:    err,
			}
		}

		if !info.IsDir() {
			return nil, &engine.LoadError{
				FilePath: dir,
				Message:  "not a directory",
			}
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, &engine.LoadError{
				FilePath: dir,
				Message:  "failed to read directory",
				Cause:    err,
			}
		}

		var found []string
		for _, entry := range entries {
			if entry.IsDir() || !IsRuleFile(entry.Name(), s.config.Extensions) {
				continue
			}
			found = append(found, filepath.Join(dir, entry.Name()))
		}
		sort.Strings(found)
		files = append(files, found...)
	}

	return files, nil
}

// LoadRules loads every rule file on the search path. Loading is
// all-or-nothing: the first error aborts the load and no rules are
// returned. Two rules with the same name fail with
// engine.ErrDuplicateRuleName.
func (s *DirectorySource) LoadRules(ctx context.Context) ([]*engine.Rule, error) {
	files, err := s.Files()
	if err != nil {
		return nil, err
	}

	rules := make([]*engine.Rule, 0, len(files))
	seen := make(map[string]*engine.Rule, len(files))

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rule, err := s.LoadFile(path)
		if err != nil {
			return nil, err
		}

		if existing, ok := seen[rule.Name()]; ok {
			return nil, &engine.LoadError{
				FilePath: path,
				Message:  fmt.Sprintf("already have a rule called %s from %s, cannot load another", rule.Name(), existing.File()),
				Cause:    engine.ErrDuplicateRuleName,
			}
		}
		seen[rule.Name()] = rule
		rules = append(rules, rule)
	}

	s.logger.Info("rule files loaded",
		"paths", s.Paths(),
		"count", len(rules),
	)

	return rules, nil
}

// LoadFile loads the single rule defined in path.
func (s *DirectorySource) LoadFile(path string) (*engine.Rule, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &engine.LoadError{
			FilePath: path,
			Message:  "failed to access file",
			Cause:    fmt.Errorf("%w: %w", engine.ErrUnreadableRule, err),
		}
	}

	if !info.Mode().IsRegular() {
		return nil, &engine.LoadError{
			FilePath: path,
			Message:  "not a regular file",
			Cause:    engine.ErrUnreadableRule,
		}
	}

	if info.Size() > s.config.MaxFileSize {
		return nil, &engine.LoadError{
			FilePath: path,
			Message:  fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", info.Size(), s.config.MaxFileSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &engine.LoadError{
			FilePath: path,
			Message:  "failed to read file",
			Cause:    fmt.Errorf("%w: %w", engine.ErrUnreadableRule, err),
		}
	}

	if !utf8.Valid(data) {
		return nil, &engine.LoadError{
			FilePath: path,
			Message:  "file contains invalid UTF-8 encoding",
		}
	}

	rule, err := s.compiler.Compile(data, path)
	if err != nil {
		var loadErr *engine.LoadError
		if errors.As(err, &loadErr) {
			return nil, err
		}
		return nil, &engine.LoadError{
			FilePath: path,
			Message:  "invalid rule definition",
			Cause:    err,
		}
	}

	s.logger.Debug("rule loaded",
		"rule", rule.Name(),
		"file", path,
		"priority", rule.Priority(),
	)
	if !rule.HasLogic() {
		s.logger.Warn("rule has no run steps or output and will fail when executed",
			"rule", rule.Name(),
			"file", path,
		)
	}

	return rule, nil
}

// IsRuleFile reports whether name is a rule file: one of extensions with a
// base name ending in RuleSuffix.
func IsRuleFile(name string, extensions []string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}

	ext := filepath.Ext(name)
	for _, valid := range extensions {
		if strings.EqualFold(ext, valid) {
			return strings.HasSuffix(strings.TrimSuffix(name, ext), RuleSuffix)
		}
	}
	return false
}
