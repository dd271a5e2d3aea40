package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/syntrixbase/feedwatch/internal/core/pubsub"
)

// ErrNotConnected is returned by the factory methods before Connect succeeds.
var ErrNotConnected = errors.New("nats: not connected, call Connect first")

var (
	_ pubsub.Provider    = (*Provider)(nil)
	_ pubsub.Connectable = (*Provider)(nil)
)

// Provider implements pubsub.Provider on a single NATS connection.
type Provider struct {
	url    string
	name   string
	logger *slog.Logger

	mu sync.Mutex
	nc natsConnection
	js JetStream

	connect      connectFunc
	newJetStream jetStreamFactory
}

// NewProvider returns a provider for the server at url. The connection is
// established by Connect.
func NewProvider(url, name string, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		url:          url,
		name:         name,
		logger:       logger.With("component", "nats"),
		connect:      defaultConnect,
		newJetStream: defaultJetStream,
	}
}

// Connect dials the server and initializes JetStream. The client reconnects
// on its own after the initial connection succeeds.
func (p *Provider) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nc != nil {
		return nil
	}

	nc, err := p.connect(p.url,
		nats.Name(p.name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				p.logger.Warn("Disconnected from NATS", "error", err)
			}
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			p.logger.Info("Reconnected to NATS", "url", conn.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", p.url, err)
	}

	js, err := p.newJetStream(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create JetStream: %w", err)
	}

	p.nc = nc
	p.js = js
	p.logger.Info("Connected to NATS", "url", p.url)
	return nil
}

func (p *Provider) jetStream() (JetStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.js == nil {
		return nil, ErrNotConnected
	}
	return p.js, nil
}

func (p *Provider) NewPublisher(opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	js, err := p.jetStream()
	if err != nil {
		return nil, err
	}
	return NewPublisher(js, opts)
}

func (p *Provider) NewConsumer(opts pubsub.ConsumerOptions) (pubsub.Consumer, error) {
	js, err := p.jetStream()
	if err != nil {
		return nil, err
	}
	return NewConsumer(js, opts, p.logger)
}

// Close closes the connection. Safe to call more than once.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nc != nil {
		p.logger.Info("Closing NATS connection")
		p.nc.Close()
		p.nc = nil
		p.js = nil
	}
	return nil
}
