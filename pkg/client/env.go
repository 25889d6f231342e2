package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
)

// Environment variables read by LoadEnv.
const (
	DefaultKeyVariable = "VaultApiKey"
	DefaultURLVariable = "VAULT_URL"
	EnvironmentVar     = "EASYVAULT_ENVIRONMENT"
)

// EnvOptions configures LoadEnv.
type EnvOptions struct {
	// BaseURL of the server. Empty reads DefaultURLVariable.
	BaseURL string
	// KeyVariable names the variable holding the entry id. Empty means DefaultKeyVariable.
	KeyVariable string
	// SkipInDevelopment does nothing when EnvironmentVar is "development".
	SkipInDevelopment bool
	// Strict turns a failed fetch, a missing key id or an empty entry into an error.
	Strict bool
	// Prefix is prepended to every exported variable name.
	Prefix string
	// Overwrite replaces variables that are already set.
	Overwrite bool
	// ClientOptions are passed to New.
	ClientOptions []Option

	// Getenv and Setenv default to os.Getenv and os.Setenv.
	Getenv func(string) string
	Setenv func(key, value string) error
}

// LoadEnv fetches one entry and exports each value as an environment
// variable. It returns the names it set, sorted.
func LoadEnv(ctx context.Context, opts EnvOptions) ([]string, error) {
	getenv, setenv := opts.Getenv, opts.Setenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if setenv == nil {
		setenv = os.Setenv
	}

	if opts.SkipInDevelopment && strings.EqualFold(getenv(EnvironmentVar), "development") {
		return nil, nil
	}

	keyVar := opts.KeyVariable
	if keyVar == "" {
		keyVar = DefaultKeyVariable
	}
	keyID := strings.TrimSpace(getenv(keyVar))
	if keyID == "" {
		if opts.Strict {
			return nil, fmt.Errorf("environment variable %s is not set", keyVar)
		}
		return nil, nil
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = getenv(DefaultURLVariable)
	}
	if baseURL == "" {
		return nil, fmt.Errorf("vault url is not set (%s)", DefaultURLVariable)
	}

	c, err := New(baseURL, keyID, opts.ClientOptions...)
	if err != nil {
		return nil, err
	}
	values, err := c.GetSecrets(ctx)
	if err != nil {
		if opts.Strict {
			return nil, err
		}
		return nil, nil
	}
	if len(values) == 0 {
		if opts.Strict {
			return nil, errors.New("vault returned no values")
		}
		return nil, nil
	}

	set := make([]string, 0, len(values))
	for k, v := range values {
		name := opts.Prefix + k
		if !opts.Overwrite && getenv(name) != "" {
			continue
		}
		if err := setenv(name, v); err != nil {
			return set, fmt.Errorf("set %s: %w", name, err)
		}
		set = append(set, name)
	}
	slices.Sort(set)
	return set, nil
}
