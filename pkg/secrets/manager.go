package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
)

var referencePattern = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Manager resolves secrets through providers in order.
type Manager struct {
	providers []Provider
	logger    *slog.Logger
}

// NewManager creates a manager trying providers in the given order.
func NewManager(logger *slog.Logger, providers ...Provider) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		providers: providers,
		logger:    logger.With("component", "secrets"),
	}
}

// Secret returns the first value any supporting provider yields.
func (m *Manager) Secret(ctx context.Context, name string) (string, error) {
	var errs []error
	for _, provider := range m.providers {
		if !provider.Supports(name) {
			continue
		}

		value, err := provider.Secret(ctx, name)
		if err != nil {
			m.logger.Debug("provider failed to get secret",
				"provider", provider.Name(),
				"name", redact(name),
				"error", err,
			)
			errs = append(errs, err)
			continue
		}

		m.logger.Debug("secret resolved", "provider", provider.Name(), "name", redact(name))
		return value, nil
	}

	if len(errs) == 0 {
		return "", fmt.Errorf("%w: %q (no provider supports this secret)", ErrNotFound, name)
	}
	return "", fmt.Errorf("failed to get secret %q: %w", name, errors.Join(errs...))
}

// Resolve replaces every ${secret:name} in input. Unresolved references
// are left in place and reported together.
func (m *Manager) Resolve(ctx context.Context, input string) (string, error) {
	var errs []error

	output := referencePattern.ReplaceAllStringFunc(input, func(match string) string {
		name := referencePattern.FindStringSubmatch(match)[1]
		value, err := m.Secret(ctx, name)
		if err != nil {
			errs = append(errs, err)
			return match
		}
		return value
	})

	if len(errs) > 0 {
		return output, fmt.Errorf("failed to resolve secret references: %w", errors.Join(errs...))
	}
	return output, nil
}

// ResolveAll resolves each target in place and stops at the first error.
func (m *Manager) ResolveAll(ctx context.Context, targets ...*string) error {
	for _, target := range targets {
		if !referencePattern.MatchString(*target) {
			continue
		}
		resolved, err := m.Resolve(ctx, *target)
		if err != nil {
			return err
		}
		*target = resolved
	}
	return nil
}

// redact shortens a secret name for logs.
func redact(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
