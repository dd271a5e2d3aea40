package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestDefaultLoggingConfig(t *testing.T) {
	cfg := DefaultLoggingConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, "logs", cfg.Dir)
	assert.Equal(t, 100, cfg.Rotation.MaxSize)
	assert.True(t, cfg.Rotation.Compress)
	assert.True(t, cfg.Console.Enabled)
	assert.True(t, cfg.File.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.RepeatWindow)
	assert.NoError(t, cfg.Validate())
}

func TestLoggingConfigYAMLParsing(t *testing.T) {
	yamlData := `
level: "debug"
format: "json"
dir: "/var/log/feedwatch"
rotation:
  max_size: 50
  max_backups: 5
  compress: false
console:
  enabled: false
  level: "warn"
`
	var cfg LoggingConfig
	assert.NoError(t, yaml.Unmarshal([]byte(yamlData), &cfg))

	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "/var/log/feedwatch", cfg.Dir)
	assert.Equal(t, 50, cfg.Rotation.MaxSize)
	assert.Equal(t, 5, cfg.Rotation.MaxBackups)
	assert.False(t, cfg.Console.Enabled)
	assert.Equal(t, "warn", cfg.Console.Level)
}

func TestLoggingConfigApplyDefaults(t *testing.T) {
	cfg := &LoggingConfig{}
	cfg.ApplyDefaults()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, "logs", cfg.Dir)
	assert.Equal(t, 10, cfg.Rotation.MaxBackups)
	assert.Equal(t, 30, cfg.Rotation.MaxAge)
	assert.False(t, cfg.Rotation.Compress)
	assert.True(t, cfg.Console.Enabled)
	assert.True(t, cfg.File.Enabled)
}

func TestLoggingConfigApplyDefaultsWithPartialConfig(t *testing.T) {
	cfg := &LoggingConfig{
		Level:   "debug",
		Format:  "json",
		Console: OutputConfig{Enabled: true, Level: "warn"},
		File:    OutputConfig{Level: "error"},
	}
	cfg.ApplyDefaults()

	assert.Equal(t, "warn", cfg.Console.Level)
	assert.Equal(t, "json", cfg.Console.Format)
	// A partially filled section keeps its enabled flag.
	assert.False(t, cfg.File.Enabled)
	assert.Equal(t, "error", cfg.File.Level)
	assert.Equal(t, "json", cfg.File.Format)
}

func TestLoggingConfigApplyEnvOverrides(t *testing.T) {
	t.Setenv("FEEDWATCH_LOG_LEVEL", " DEBUG ")

	cfg := DefaultLoggingConfig()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "debug", cfg.Console.Level)
	assert.Equal(t, "debug", cfg.File.Level)
}

func TestLoggingConfigApplyEnvOverrides_Unset(t *testing.T) {
	t.Setenv("FEEDWATCH_LOG_LEVEL", "")

	cfg := DefaultLoggingConfig()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "info", cfg.Level)
}

func TestLoggingConfigResolvePaths(t *testing.T) {
	tests := []struct {
		name      string
		configDir string
		dir       string
		expected  string
	}{
		{"relative path next to config dir", "/app/config", "logs", "/app/logs"},
		{"dot-dot path from config dir", "/app/config", "../var/logs", "/app/var/logs"},
		{"absolute path unchanged", "/app/config", "/var/log/feedwatch", "/var/log/feedwatch"},
		{"empty dir unchanged", "/app/config", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &LoggingConfig{Dir: tt.dir}
			cfg.ResolvePaths(tt.configDir)
			assert.Equal(t, tt.expected, cfg.Dir)
		})
	}
}

func TestLoggingConfigValidation(t *testing.T) {
	base := func() LoggingConfig {
		return LoggingConfig{Level: "info", Format: "text", Dir: "logs"}
	}

	tests := []struct {
		name        string
		mutate      func(*LoggingConfig)
		expectError bool
	}{
		{"valid config", func(*LoggingConfig) {}, false},
		{"invalid level", func(c *LoggingConfig) { c.Level = "invalid" }, true},
		{"invalid format", func(c *LoggingConfig) { c.Format = "xml" }, true},
		{"empty dir", func(c *LoggingConfig) { c.Dir = "" }, true},
		{"negative repeat window", func(c *LoggingConfig) { c.RepeatWindow = -time.Second }, true},
		{"invalid console level when enabled", func(c *LoggingConfig) {
			c.Console = OutputConfig{Enabled: true, Level: "loud"}
		}, true},
		{"invalid console level ignored when disabled", func(c *LoggingConfig) {
			c.Console = OutputConfig{Enabled: false, Level: "loud"}
		}, false},
		{"invalid file format when enabled", func(c *LoggingConfig) {
			c.File = OutputConfig{Enabled: true, Format: "xml"}
		}, true},
		{"console and file overrides", func(c *LoggingConfig) {
			c.Console = OutputConfig{Enabled: true, Level: "debug", Format: "text"}
			c.File = OutputConfig{Enabled: true, Level: "warn", Format: "json"}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
