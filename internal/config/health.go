package config

import (
	"fmt"
	"strings"
)

// HealthConfig configures the health HTTP endpoint.
type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// DefaultHealthConfig returns the default health configuration.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{Enabled: true, Addr: ":8081", Path: "/health"}
}

func (c *HealthConfig) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8081"
	}
	if c.Path == "" {
		c.Path = "/health"
	}
}

func (c *HealthConfig) ApplyEnvOverrides() {}

func (c *HealthConfig) Validate() error {
	if c.Enabled && !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("health.path must start with '/': %q", c.Path)
	}
	return nil
}
