package pubsub

import (
	"fmt"
	"strings"
	"time"
)

// StorageType defines the storage backend for streams.
type StorageType int

const (
	MemoryStorage StorageType = iota
	FileStorage
)

func (s StorageType) String() string {
	if s == FileStorage {
		return "file"
	}
	return "memory"
}

// ParseStorage maps "memory" or "file" to a StorageType. The empty string is
// MemoryStorage.
func ParseStorage(s string) (StorageType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "memory":
		return MemoryStorage, nil
	case "file":
		return FileStorage, nil
	default:
		return MemoryStorage, fmt.Errorf("unknown storage type %q", s)
	}
}

// PublisherOptions configures publisher behavior.
type PublisherOptions struct {
	// StreamName is ensured to exist when the publisher is created.
	StreamName string

	// SubjectPrefix is prepended to all subjects.
	SubjectPrefix string

	// RetryAttempts is the number of publish retries. 0 means no retry.
	RetryAttempts int

	Storage StorageType

	// OnPublish is called after each publish attempt.
	OnPublish func(subject string, err error, latency time.Duration)
}

// ConsumerOptions configures consumer behavior.
type ConsumerOptions struct {
	StreamName string

	// ConsumerName makes the consumer durable. Empty means ephemeral.
	ConsumerName string

	// FilterSubject filters messages by subject pattern. Defaults to
	// "<StreamName>.>".
	FilterSubject string

	// DeliverNew skips messages stored before the subscription started.
	DeliverNew bool

	ChannelBufSize int
}

// DefaultConsumerOptions returns ConsumerOptions with sensible defaults.
func DefaultConsumerOptions() ConsumerOptions {
	return ConsumerOptions{
		ChannelBufSize: 100,
	}
}

// Subject joins prefix and subject with a dot. An empty prefix leaves subject
// unchanged.
func Subject(prefix, subject string) string {
	if prefix == "" {
		return subject
	}
	return prefix + "." + subject
}
