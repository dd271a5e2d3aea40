package config

// ServiceConfig defines the configuration lifecycle every section follows.
type ServiceConfig interface {
	// ApplyDefaults fills zero values with sensible defaults
	ApplyDefaults()

	// ApplyEnvOverrides applies environment variable overrides
	ApplyEnvOverrides()

	// Validate returns an error if the configuration is invalid.
	Validate() error
}

// pathResolver is implemented by sections that carry file system paths.
type pathResolver interface {
	ResolvePaths(configDir string)
}

// ApplyServiceConfigs applies the configuration lifecycle to all sections.
// It calls ApplyDefaults, ApplyEnvOverrides, ResolvePaths (when supported) and
// Validate in order and stops at the first validation error.
func ApplyServiceConfigs(configDir string, configs ...ServiceConfig) error {
	for _, cfg := range configs {
		cfg.ApplyDefaults()
		cfg.ApplyEnvOverrides()
		if r, ok := cfg.(pathResolver); ok {
			r.ResolvePaths(configDir)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	return nil
}
