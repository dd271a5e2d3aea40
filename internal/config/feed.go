package config

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

// Feed backends.
const (
	BackendMongo       = "mongo"
	BackendReplication = "replication"
)

// FeedConfig selects and configures the change-feed backend.
type FeedConfig struct {
	Backend     string            `yaml:"backend"`
	Collections []string          `yaml:"collections"`
	Mongo       MongoFeedConfig   `yaml:"mongo"`
	Replication ReplicationConfig `yaml:"replication"`
}

// MongoFeedConfig configures the MongoDB backend.
type MongoFeedConfig struct {
	URI            string `yaml:"uri"`
	Database       string `yaml:"database"`
	UpdatedAtField string `yaml:"updated_at_field"`
	DeletedField   string `yaml:"deleted_field"`
	BatchSize      int    `yaml:"batch_size"`
}

// ReplicationConfig configures the replication pull client.
type ReplicationConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Database string        `yaml:"database"`
	Limit    int           `yaml:"limit"`
	Timeout  time.Duration `yaml:"timeout"`

	// RequestsPerSecond throttles pull requests. 0 disables throttling.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// DefaultFeedConfig returns the default feed configuration.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		Backend: BackendMongo,
		Mongo: MongoFeedConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "syntrix",
			UpdatedAtField: "updated_at",
			DeletedField:   "deleted",
			BatchSize:      500,
		},
		Replication: ReplicationConfig{
			BaseURL:  "http://localhost:8080",
			Database: "default",
			Limit:    100,
			Timeout:  15 * time.Second,
		},
	}
}

// ApplyDefaults fills zero values with defaults.
func (c *FeedConfig) ApplyDefaults() {
	defaults := DefaultFeedConfig()
	if c.Backend == "" {
		c.Backend = defaults.Backend
	}
	if c.Mongo.URI == "" {
		c.Mongo.URI = defaults.Mongo.URI
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = defaults.Mongo.Database
	}
	if c.Mongo.UpdatedAtField == "" {
		c.Mongo.UpdatedAtField = defaults.Mongo.UpdatedAtField
	}
	if c.Mongo.DeletedField == "" {
		c.Mongo.DeletedField = defaults.Mongo.DeletedField
	}
	if c.Mongo.BatchSize == 0 {
		c.Mongo.BatchSize = defaults.Mongo.BatchSize
	}
	if c.Replication.BaseURL == "" {
		c.Replication.BaseURL = defaults.Replication.BaseURL
	}
	if c.Replication.Database == "" {
		c.Replication.Database = defaults.Replication.Database
	}
	if c.Replication.Limit == 0 {
		c.Replication.Limit = defaults.Replication.Limit
	}
	if c.Replication.Timeout == 0 {
		c.Replication.Timeout = defaults.Replication.Timeout
	}
}

// ApplyEnvOverrides applies FEEDWATCH_MONGO_URI and FEEDWATCH_FEED_URL.
func (c *FeedConfig) ApplyEnvOverrides() {
	if v := os.Getenv("FEEDWATCH_MONGO_URI"); v != "" {
		c.Mongo.URI = v
	}
	if v := os.Getenv("FEEDWATCH_FEED_URL"); v != "" {
		c.Replication.BaseURL = v
	}
}

// Validate returns an error if the configuration is invalid.
func (c *FeedConfig) Validate() error {
	if len(c.Collections) == 0 {
		return fmt.Errorf("feed.collections must list at least one collection")
	}
	switch c.Backend {
	case BackendMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return fmt.Errorf("feed.mongo.uri and feed.mongo.database are required")
		}
		if c.Mongo.BatchSize < 0 {
			return fmt.Errorf("feed.mongo.batch_size must not be negative")
		}
	case BackendReplication:
		u, err := url.Parse(c.Replication.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("feed.replication.base_url is not a valid URL: %q", c.Replication.BaseURL)
		}
		if c.Replication.Limit <= 0 || c.Replication.Limit > 1000 {
			return fmt.Errorf("feed.replication.limit must be in 1..1000")
		}
		if c.Replication.RequestsPerSecond < 0 {
			return fmt.Errorf("feed.replication.requests_per_second must not be negative")
		}
	default:
		return fmt.Errorf("unknown feed backend %q (must be %s or %s)", c.Backend, BackendMongo, BackendReplication)
	}
	return nil
}
