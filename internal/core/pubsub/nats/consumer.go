package nats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/syntrixbase/feedwatch/internal/core/pubsub"
)

type jetStreamConsumer struct {
	js     JetStream
	opts   pubsub.ConsumerOptions
	logger *slog.Logger
}

// NewConsumer returns a Consumer reading from an existing stream.
func NewConsumer(js JetStream, opts pubsub.ConsumerOptions, logger *slog.Logger) (pubsub.Consumer, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream cannot be nil")
	}
	if opts.StreamName == "" {
		return nil, fmt.Errorf("stream name is required")
	}
	if opts.ChannelBufSize <= 0 {
		opts.ChannelBufSize = pubsub.DefaultConsumerOptions().ChannelBufSize
	}
	if opts.FilterSubject == "" {
		opts.FilterSubject = opts.StreamName + ".>"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &jetStreamConsumer{js: js, opts: opts, logger: logger}, nil
}

func (c *jetStreamConsumer) consumerConfig() jetstream.ConsumerConfig {
	cfg := jetstream.ConsumerConfig{
		Durable:       c.opts.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		FilterSubject: c.opts.FilterSubject,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	}
	if c.opts.DeliverNew {
		cfg.DeliverPolicy = jetstream.DeliverNewPolicy
	}
	return cfg
}

func (c *jetStreamConsumer) Subscribe(ctx context.Context) (<-chan pubsub.Message, error) {
	consumer, err := c.js.CreateOrUpdateConsumer(ctx, c.opts.StreamName, c.consumerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer on %s: %w", c.opts.StreamName, err)
	}

	msgCh := make(chan pubsub.Message, c.opts.ChannelBufSize)

	// mu orders the handler's sends against close(msgCh).
	var mu sync.RWMutex
	closed := false

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		mu.RLock()
		defer mu.RUnlock()
		if closed {
			_ = msg.Nak()
			return
		}
		select {
		case msgCh <- WrapMessage(msg):
		case <-ctx.Done():
			_ = msg.Nak()
		}
	})
	if err != nil {
		close(msgCh)
		return nil, fmt.Errorf("failed to start consumer: %w", err)
	}

	c.logger.Info("Consumer subscribed", "stream", c.opts.StreamName, "filter", c.opts.FilterSubject)

	go func() {
		<-ctx.Done()
		cc.Stop()
		mu.Lock()
		closed = true
		close(msgCh)
		mu.Unlock()
		c.logger.Info("Consumer stopped", "stream", c.opts.StreamName)
	}()

	return msgCh, nil
}
