// Package pubsub is the message broker abstraction the relay publishes change
// sets through. Implementations live in the nats and memory subpackages.
package pubsub

import (
	"context"
	"io"
	"time"
)

// Message is a delivered message with acknowledgment controls.
type Message interface {
	Data() []byte
	Subject() string

	// Ack acknowledges successful processing.
	Ack() error

	// Nak requests redelivery.
	Nak() error

	// Term stops redelivery of the message.
	Term() error

	Metadata() (MessageMetadata, error)
}

// MessageMetadata contains delivery information about a message.
type MessageMetadata struct {
	NumDelivered uint64
	Timestamp    time.Time
	Subject      string
	Stream       string
	Consumer     string
}

// Publisher publishes messages to a stream.
type Publisher interface {
	// Publish sends data to subject. The publisher's SubjectPrefix, if any,
	// is prepended.
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}

// Consumer consumes messages from a stream.
type Consumer interface {
	// Subscribe starts consuming and returns a channel that is closed when
	// ctx is done. The caller acknowledges every message it receives.
	Subscribe(ctx context.Context) (<-chan Message, error)
}

// Provider creates publishers and consumers for one broker.
type Provider interface {
	io.Closer
	NewPublisher(opts PublisherOptions) (Publisher, error)
	NewConsumer(opts ConsumerOptions) (Consumer, error)
}

// Connectable is implemented by providers that need a connection before use.
type Connectable interface {
	Connect(ctx context.Context) error
}
