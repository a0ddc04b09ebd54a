package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvProvider reads secrets from environment variables. A secret name is
// upper-cased, hyphens become underscores and Prefix is prepended:
// "git-token" with prefix "RULEKEEPER_SECRET_" reads
// RULEKEEPER_SECRET_GIT_TOKEN.
type EnvProvider struct {
	Prefix string
}

// NewEnvProvider creates an environment provider.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{Prefix: prefix}
}

// Secret returns the variable for name. Empty variables count as missing.
func (p *EnvProvider) Secret(_ context.Context, name string) (string, error) {
	envVar := p.envVar(name)

	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("%w in environment: %s (env var: %s)", ErrNotFound, name, envVar)
	}
	return value, nil
}

// Name returns "env".
func (p *EnvProvider) Name() string {
	return "env"
}

// Supports always returns true.
func (p *EnvProvider) Supports(string) bool {
	return true
}

func (p *EnvProvider) envVar(name string) string {
	return p.Prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}
