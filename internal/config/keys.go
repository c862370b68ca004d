package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no planner API key configured")

// apiKeyEnv returns the conventional API key variable of a provider.
func apiKeyEnv(provider string) string {
	switch provider {
	case "gemini":
		return "GEMINI_API_KEY"
	case "bedrock":
		return ""
	default:
		return "ANTHROPIC_API_KEY"
	}
}

// NeedsAPIKey reports whether the configured provider authenticates with
// an API key. Bedrock uses AWS credentials and Gemini on Vertex AI uses
// Google application credentials.
func NeedsAPIKey(cfg *Config) bool {
	if cfg == nil {
		return true
	}
	switch cfg.Planner.Provider {
	case "bedrock":
		return false
	case "gemini":
		return cfg.Planner.GCPProject == "" && cfg.Planner.GCPLocation == ""
	default:
		return true
	}
}

// GetAPIKey returns the planner API key.
// It checks in order: the provider's environment variable, config file.
func GetAPIKey(cfg *Config) (string, error) {
	provider := ""
	if cfg != nil {
		provider = cfg.Planner.Provider
	}

	if env := apiKeyEnv(provider); env != "" {
		if key := os.Getenv(env); key != "" {
			return key, nil
		}
	}

	if cfg != nil && cfg.Planner.APIKey != "" {
		key := os.ExpandEnv(cfg.Planner.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, nil
		}
	}

	return "", ErrNoAPIKey
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource returns where the API key was sourced from.
func GetAPIKeySource(cfg *Config) KeySource {
	provider := ""
	if cfg != nil {
		provider = cfg.Planner.Provider
	}
	if env := apiKeyEnv(provider); env != "" && os.Getenv(env) != "" {
		return KeySourceEnv
	}

	if cfg != nil && cfg.Planner.APIKey != "" {
		key := os.ExpandEnv(cfg.Planner.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return KeySourceConfig
		}
	}

	return KeySourceNone
}
