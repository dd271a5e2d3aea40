// Package nats implements pubsub on NATS JetStream.
package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// JetStream is the part of jetstream.JetStream the publisher and consumer use.
type JetStream interface {
	CreateOrUpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	CreateOrUpdateConsumer(ctx context.Context, stream string, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error)
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

var _ JetStream = (jetstream.JetStream)(nil)

type natsConnection interface {
	Close()
}

type connectFunc func(url string, opts ...nats.Option) (natsConnection, error)

type jetStreamFactory func(nc natsConnection) (JetStream, error)

func defaultConnect(url string, opts ...nats.Option) (natsConnection, error) {
	return nats.Connect(url, opts...)
}

func defaultJetStream(nc natsConnection) (JetStream, error) {
	conn, ok := nc.(*nats.Conn)
	if !ok {
		return nil, fmt.Errorf("unsupported connection type %T", nc)
	}
	return jetstream.New(conn)
}
