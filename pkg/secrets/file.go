package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileProvider reads each secret from a file named after it inside Dir.
type FileProvider struct {
	Dir string
}

// NewFileProvider creates a file provider rooted at dir, which must exist.
func NewFileProvider(dir string) (*FileProvider, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat secrets directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets path is not a directory: %s", dir)
	}
	return &FileProvider{Dir: dir}, nil
}

// Secret reads <Dir>/<name> with surrounding whitespace trimmed. Files must
// be regular with mode 0600 or 0400.
func (p *FileProvider) Secret(_ context.Context, name string) (string, error) {
	if !p.Supports(name) {
		return "", fmt.Errorf("invalid secret name %q", name)
	}

	path := filepath.Join(p.Dir, name)

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w in %s: %s", ErrNotFound, p.Dir, name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat secret file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret path is not a regular file: %s", name)
	}
	if mode := info.Mode().Perm(); mode != 0o600 && mode != 0o400 {
		return "", fmt.Errorf("insecure permissions on %s: %o (expected 0600 or 0400)", path, mode)
	}

	// #nosec G304 - name cannot leave Dir
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Name returns "file".
func (p *FileProvider) Name() string {
	return "file"
}

// Supports rejects names that would escape Dir.
func (p *FileProvider) Supports(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
