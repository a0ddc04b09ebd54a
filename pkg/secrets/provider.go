package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a provider has no value for a secret.
var ErrNotFound = errors.New("secret not found")

// Provider retrieves secrets from one backend.
type Provider interface {
	// Secret returns the value of name.
	Secret(ctx context.Context, name string) (string, error)

	// Name identifies the provider in logs.
	Name() string

	// Supports reports whether the provider may hold name.
	Supports(name string) bool
}
