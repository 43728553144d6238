package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Load loads configuration from an optional YAML file, then overrides
// with environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SERVER_PORT, PROVIDER_API_KEY, ...)
//  2. YAML config file (configPath, skipped when empty or absent)
//  3. Hardcoded defaults
//
// Environment variables use underscore separators, split on the first
// underscore into section and field:
//
//	SERVER_PORT             -> server.port
//	FUSION_MAX_OTHER_APPS   -> fusion.max_other_apps
//	PROVIDER_API_KEY        -> provider.api_key
//
// As a convenience for the producers' existing setups, the provider
// credential also falls back to the conventional OPENAI_API_KEY or
// ANTHROPIC_API_KEY variables when provider.api_key is unset.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}
		} else {
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		// Split on the first underscore only: SECTION_FIELD_NAME
		// becomes section.field_name.
		lower := strings.ToLower(s)
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	applyCredentialFallback(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyCredentialFallback fills the provider credential from the
// provider's conventional environment variable. A still-empty key is a
// valid configuration and degrades to fallback recommendations.
func applyCredentialFallback(cfg *Config) {
	if cfg.Provider.APIKey.IsSet() {
		return
	}
	switch cfg.Provider.Name {
	case "openai":
		cfg.Provider.APIKey = Secret(os.Getenv("OPENAI_API_KEY"))
	case "anthropic":
		cfg.Provider.APIKey = Secret(os.Getenv("ANTHROPIC_API_KEY"))
	}
}
