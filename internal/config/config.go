package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	poller "github.com/syntrixbase/feedwatch/internal/poller/config"
	"gopkg.in/yaml.v3"
)

// DefaultConfigDir is where LoadConfig looks for config.yml and config.local.yml.
const DefaultConfigDir = "config"

// Config holds the application configuration
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Poller  poller.Config `yaml:"poller"`
	Feed    FeedConfig    `yaml:"feed"`
	Auth    AuthConfig    `yaml:"auth"`
	Relay   RelayConfig   `yaml:"relay"`
	Health  HealthConfig  `yaml:"health"`
}

// Default returns a configuration populated with defaults only.
func Default() *Config {
	return &Config{
		Logging: DefaultLoggingConfig(),
		Poller:  poller.DefaultConfig(),
		Feed:    DefaultFeedConfig(),
		Auth:    DefaultAuthConfig(),
		Relay:   DefaultRelayConfig(),
		Health:  DefaultHealthConfig(),
	}
}

// LoadConfig loads configuration from files and environment variables.
// Order: defaults -> config.yml -> config.local.yml -> ApplyDefaults ->
// ApplyEnvOverrides -> ResolvePaths -> Validate
func LoadConfig(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir
	}

	// Defaults first so YAML can override them, bool fields included.
	cfg := Default()

	loadFile(filepath.Join(configDir, "config.yml"), cfg)
	loadFile(filepath.Join(configDir, "config.local.yml"), cfg)

	if err := ApplyServiceConfigs(configDir,
		&cfg.Logging,
		&cfg.Poller,
		&cfg.Feed,
		&cfg.Auth,
		&cfg.Relay,
		&cfg.Health,
	); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// loadFile merges a YAML file into cfg. Missing files are skipped; unreadable
// or malformed files are reported and leave cfg untouched.
func loadFile(filename string, cfg *Config) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		slog.Warn("Error reading config file", "file", filename, "error", err)
		return
	}

	next := *cfg
	if err := yaml.Unmarshal(data, &next); err != nil {
		slog.Warn("Error parsing config file", "file", filename, "error", err)
		return
	}
	*cfg = next
}
