package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrNoAPIKey is returned when no API key is configured.
	ErrNoAPIKey = errors.New("no Anthropic API key configured (set ANTHROPIC_API_KEY or anthropic.api_key, or enable anthropic.bedrock)")
	// ErrMalformedAPIKey is returned by CheckAPIKey.
	ErrMalformedAPIKey = errors.New("malformed API key")
)

// apiKeyEnvVars are checked in order before the config file.
var apiKeyEnvVars = []string{"FORAGEN_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"}

const (
	apiKeyPrefix = "sk-ant-"
	apiKeyMinLen = 20
	redactTail   = 4
)

// CredentialSource describes where agent credentials come from.
type CredentialSource string

const (
	CredentialsEnv     CredentialSource = "environment"
	CredentialsConfig  CredentialSource = "config_file"
	CredentialsBedrock CredentialSource = "aws_bedrock"
	CredentialsNone    CredentialSource = "none"
)

// Credentials is the outcome of resolving how agent requests authenticate.
type Credentials struct {
	Source CredentialSource
	// Origin names the env var or config key the API key came from.
	Origin string
	APIKey string
}

// ResolveCredentials picks the credentials the executor will use.
// Bedrock wins over any API key, then the environment, then the config file.
// A config value that still holds an unexpanded ${VAR} reference counts as unset.
func ResolveCredentials(cfg *Config) Credentials {
	if cfg != nil && cfg.Anthropic.Bedrock {
		return Credentials{Source: CredentialsBedrock, Origin: "anthropic.bedrock"}
	}
	for _, name := range apiKeyEnvVars {
		if key := os.Getenv(name); key != "" {
			return Credentials{Source: CredentialsEnv, Origin: name, APIKey: key}
		}
	}
	if cfg != nil {
		if key := os.ExpandEnv(cfg.Anthropic.APIKey); key != "" && !strings.HasPrefix(key, "${") {
			return Credentials{Source: CredentialsConfig, Origin: "anthropic.api_key", APIKey: key}
		}
	}
	return Credentials{Source: CredentialsNone}
}

// RequireAPIKey returns the API key, or ErrNoAPIKey when none resolved.
func (c Credentials) RequireAPIKey() (string, error) {
	if c.APIKey == "" {
		return "", ErrNoAPIKey
	}
	return c.APIKey, nil
}

// String reports the source and origin without the key itself.
func (c Credentials) String() string {
	if c.Origin == "" {
		return string(c.Source)
	}
	return fmt.Sprintf("%s (%s)", c.Source, c.Origin)
}

// CheckAPIKey rejects keys that cannot be Anthropic API keys.
// Nothing is sent to the API.
func CheckAPIKey(key string) error {
	switch {
	case key == "":
		return ErrNoAPIKey
	case !strings.HasPrefix(key, apiKeyPrefix):
		return fmt.Errorf("%w: expected %q prefix", ErrMalformedAPIKey, apiKeyPrefix)
	case len(key) < apiKeyMinLen:
		return fmt.Errorf("%w: %d characters, need at least %d", ErrMalformedAPIKey, len(key), apiKeyMinLen)
	}
	return nil
}

// RedactAPIKey keeps the key prefix and last few characters for display.
func RedactAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) < len(apiKeyPrefix)+redactTail+5 {
		return "***"
	}
	return key[:len(apiKeyPrefix)] + "..." + key[len(key)-redactTail:]
}
