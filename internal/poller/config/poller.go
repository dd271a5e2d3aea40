package config

import (
	"errors"
	"fmt"
	"time"
)

// StartMode decides the watermark a freshly authorized session starts from.
type StartMode string

const (
	// StartFromNow starts from the time of authorization (no historical changes).
	StartFromNow StartMode = "from_now"

	// StartFromBeginning starts from the zero time.
	// Warning: the first fetch returns every change the feed still holds.
	StartFromBeginning StartMode = "from_beginning"
)

// Config holds configuration for the change-feed poller.
type Config struct {
	// Interval is the quiet period between the end of one fetch cycle and
	// the start of the next.
	Interval time.Duration `yaml:"interval"`

	// FetchTimeout bounds a single GetChangesSince call.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// AvailabilityTimeout bounds the availability query made on authorization.
	AvailabilityTimeout time.Duration `yaml:"availability_timeout"`

	// StartMode is "from_now" or "from_beginning".
	StartMode StartMode `yaml:"start_mode"`

	Subscriber SubscriberConfig `yaml:"subscriber"`
}

// SubscriberConfig holds change publisher settings.
type SubscriberConfig struct {
	// QueueLimit bounds each subscriber's undelivered queue.
	// 0 means unbounded.
	QueueLimit int `yaml:"queue_limit"`
}

// DefaultConfig returns sensible defaults for the poller.
func DefaultConfig() Config {
	return Config{
		Interval:            30 * time.Second,
		FetchTimeout:        20 * time.Second,
		AvailabilityTimeout: 10 * time.Second,
		StartMode:           StartFromNow,
		Subscriber: SubscriberConfig{
			QueueLimit: 1000,
		},
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Interval == 0 {
		c.Interval = defaults.Interval
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = defaults.FetchTimeout
	}
	if c.AvailabilityTimeout == 0 {
		c.AvailabilityTimeout = defaults.AvailabilityTimeout
	}
	if c.StartMode == "" {
		c.StartMode = defaults.StartMode
	}
}

// ApplyEnvOverrides applies environment variable overrides.
// No env vars for poller config currently.
func (c *Config) ApplyEnvOverrides() { _ = c }

// Validate validates the poller configuration.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return errors.New("poller.interval must be positive")
	}
	if c.FetchTimeout <= 0 {
		return errors.New("poller.fetch_timeout must be positive")
	}
	if c.AvailabilityTimeout <= 0 {
		return errors.New("poller.availability_timeout must be positive")
	}
	if c.StartMode != StartFromNow && c.StartMode != StartFromBeginning {
		return fmt.Errorf("poller.start_mode must be 'from_now' or 'from_beginning', got %q", c.StartMode)
	}
	if c.Subscriber.QueueLimit < 0 {
		return errors.New("poller.subscriber.queue_limit must not be negative")
	}
	return nil
}
