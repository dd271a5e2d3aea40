package config

import (
	"fmt"
	"os"
	"time"

	"github.com/syntrixbase/feedwatch/internal/core/pubsub"
)

const (
	RelayProviderNATS   = "nats"
	RelayProviderMemory = "memory"
)

// RelayConfig configures republishing of change sets to a pubsub provider:
// NATS JetStream, or the in-process memory broker.
type RelayConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Provider      string `yaml:"provider"`
	NatsURL       string `yaml:"nats_url"`
	StreamName    string `yaml:"stream_name"`
	SubjectPrefix string `yaml:"subject_prefix"`
	Filter        string `yaml:"filter"`
	// Storage is the JetStream storage of the stream: memory or file.
	Storage        string        `yaml:"storage"`
	RetryAttempts  int           `yaml:"retry_attempts"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// DefaultRelayConfig returns the default relay configuration.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		Provider:       RelayProviderNATS,
		NatsURL:        "nats://localhost:4222",
		StreamName:     "FEEDWATCH",
		SubjectPrefix:  "feedwatch",
		Storage:        "memory",
		PublishTimeout: 10 * time.Second,
	}
}

func (c *RelayConfig) ApplyDefaults() {
	defaults := DefaultRelayConfig()
	if c.Provider == "" {
		c.Provider = defaults.Provider
	}
	if c.NatsURL == "" {
		c.NatsURL = defaults.NatsURL
	}
	if c.StreamName == "" {
		c.StreamName = defaults.StreamName
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = defaults.SubjectPrefix
	}
	if c.Storage == "" {
		c.Storage = defaults.Storage
	}
	if c.PublishTimeout == 0 {
		c.PublishTimeout = defaults.PublishTimeout
	}
}

// ApplyEnvOverrides applies FEEDWATCH_RELAY_PROVIDER and FEEDWATCH_NATS_URL.
func (c *RelayConfig) ApplyEnvOverrides() {
	if v := os.Getenv("FEEDWATCH_RELAY_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("FEEDWATCH_NATS_URL"); v != "" {
		c.NatsURL = v
	}
}

func (c *RelayConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Provider {
	case RelayProviderNATS:
		if c.NatsURL == "" {
			return fmt.Errorf("relay.nats_url is required for the nats provider")
		}
	case RelayProviderMemory:
	default:
		return fmt.Errorf("relay.provider must be %q or %q, got %q", RelayProviderNATS, RelayProviderMemory, c.Provider)
	}
	if c.StreamName == "" || c.SubjectPrefix == "" {
		return fmt.Errorf("relay.stream_name and relay.subject_prefix are required when the relay is enabled")
	}
	if _, err := pubsub.ParseStorage(c.Storage); err != nil {
		return fmt.Errorf("relay.storage: %w", err)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("relay.retry_attempts must not be negative")
	}
	if c.PublishTimeout < 0 {
		return fmt.Errorf("relay.publish_timeout must not be negative")
	}
	return nil
}
