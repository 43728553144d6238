// Package config provides configuration loading for fusiond.
package config

import (
	"fmt"
	"time"
)

// Config is the full daemon configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Fusion   FusionConfig   `koanf:"fusion"`
	Provider ProviderConfig `koanf:"provider"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// FusionConfig bounds the fusion engine's output. The limits carry the
// historical producer defaults; they are configuration, not constants.
type FusionConfig struct {
	MaxOtherApps    int    `koanf:"max_other_apps"`
	OCRPreviewChars int    `koanf:"ocr_preview_chars"`
	IdleSummary     string `koanf:"idle_summary"`
}

// ProviderConfig selects and configures the external reasoning
// provider. An unset API key is valid: the daemon starts and serves
// fallback recommendations.
type ProviderConfig struct {
	Name        string   `koanf:"name"`
	Model       string   `koanf:"model"`
	APIKey      Secret   `koanf:"api_key"`
	BaseURL     string   `koanf:"base_url"`
	Timeout     Duration `koanf:"timeout"`
	MaxTokens   int      `koanf:"max_tokens"`
	Temperature float64  `koanf:"temperature"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Fusion.MaxOtherApps == 0 {
		cfg.Fusion.MaxOtherApps = 5
	}
	if cfg.Fusion.OCRPreviewChars == 0 {
		cfg.Fusion.OCRPreviewChars = 200
	}
	if cfg.Fusion.IdleSummary == "" {
		cfg.Fusion.IdleSummary = "fusiond is perceiving your environment, but no active signals yet."
	}

	if cfg.Provider.Name == "" {
		cfg.Provider.Name = "openai"
	}
	if cfg.Provider.Timeout == 0 {
		cfg.Provider.Timeout = Duration(5 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Fusion.MaxOtherApps < 1 {
		return fmt.Errorf("fusion.max_other_apps must be positive: %d", c.Fusion.MaxOtherApps)
	}
	if c.Fusion.OCRPreviewChars < 1 {
		return fmt.Errorf("fusion.ocr_preview_chars must be positive: %d", c.Fusion.OCRPreviewChars)
	}
	switch c.Provider.Name {
	case "openai", "anthropic", "disabled":
	default:
		return fmt.Errorf("unknown provider: %s", c.Provider.Name)
	}
	if c.Provider.Timeout.Duration() <= 0 {
		return fmt.Errorf("provider timeout must be positive: %s", c.Provider.Timeout.Duration())
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown logging format: %s", c.Logging.Format)
	}
	return nil
}
