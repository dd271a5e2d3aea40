package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/syntrixbase/feedwatch/internal/auth"
	"github.com/syntrixbase/feedwatch/internal/config"
	"github.com/syntrixbase/feedwatch/internal/core/pubsub"
	"github.com/syntrixbase/feedwatch/internal/core/pubsub/memory"
	natspubsub "github.com/syntrixbase/feedwatch/internal/core/pubsub/nats"
	mongofeed "github.com/syntrixbase/feedwatch/internal/feed/mongo"
	"github.com/syntrixbase/feedwatch/internal/feed/replication"
	"github.com/syntrixbase/feedwatch/internal/poller"
	"github.com/syntrixbase/feedwatch/internal/relay"

	"go.mongodb.org/mongo-driver/mongo"
)

var mongoConnect = func(ctx context.Context, uri string) (*mongo.Client, error) {
	return mongofeed.Connect(ctx, uri)
}

var pubsubProviderFactory = func(cfg config.RelayConfig, logger *slog.Logger) pubsub.Provider {
	if cfg.Provider == config.RelayProviderMemory {
		return memory.New()
	}
	return natspubsub.NewProvider(cfg.NatsURL, "feedwatch", logger)
}

// Init builds every component. Nothing runs until Start.
func (m *Manager) Init(ctx context.Context) error {
	if err := m.initFeed(ctx); err != nil {
		return err
	}
	if err := m.initAuth(); err != nil {
		return err
	}
	if err := m.initPoller(); err != nil {
		return err
	}
	return m.initRelay(ctx)
}

func (m *Manager) initFeed(ctx context.Context) error {
	fc := m.cfg.Feed
	switch fc.Backend {
	case config.BackendMongo:
		client, err := mongoConnect(ctx, fc.Mongo.URI)
		if err != nil {
			return fmt.Errorf("failed to connect to mongo: %w", err)
		}
		m.closers = append(m.closers, client.Disconnect)

		cf, err := mongofeed.New(client.Database(fc.Mongo.Database), mongofeed.Config{
			Collections:    fc.Collections,
			UpdatedAtField: fc.Mongo.UpdatedAtField,
			DeletedField:   fc.Mongo.DeletedField,
			BatchSize:      fc.Mongo.BatchSize,
		}, m.logger)
		if err != nil {
			return err
		}
		m.feed = cf

	case config.BackendReplication:
		rc, err := replication.New(replication.Config{
			BaseURL:           fc.Replication.BaseURL,
			Database:          fc.Replication.Database,
			Collections:       fc.Collections,
			Limit:             fc.Replication.Limit,
			Timeout:           fc.Replication.Timeout,
			RequestsPerSecond: fc.Replication.RequestsPerSecond,
		}, nil, m.logger)
		if err != nil {
			return err
		}
		m.feed = rc

	default:
		return fmt.Errorf("unknown feed backend %q", fc.Backend)
	}

	m.logger.Info("Feed backend ready", "backend", fc.Backend, "collections", fc.Collections)
	return nil
}

func (m *Manager) initAuth() error {
	ac := m.cfg.Auth
	if ac.Mode != config.AuthModeJWT {
		return nil
	}

	vc := auth.VerifierConfig{Issuer: ac.Issuer}
	if ac.Secret != "" {
		vc.Secret = []byte(ac.Secret)
	}
	if ac.PublicKeyFile != "" {
		key, err := auth.LoadPublicKey(ac.PublicKeyFile)
		if err != nil {
			return err
		}
		vc.PublicKey = key
	}

	verifier, err := auth.NewVerifier(vc, m.clock)
	if err != nil {
		return err
	}
	m.tokens = auth.NewTokenSource(verifier, m.clock, m.logger)

	switch {
	case ac.TokenFile != "":
		if err := m.tokens.LoadFile(ac.TokenFile); err != nil {
			m.logger.Warn("Token file not usable yet", "path", ac.TokenFile, "error", err)
		}
	case ac.Token != "":
		if err := m.tokens.SetToken(ac.Token); err != nil {
			return fmt.Errorf("configured token rejected: %w", err)
		}
	default:
		m.logger.Warn("No token configured, poller stays stopped until one is provided")
	}
	return nil
}

func (m *Manager) initPoller() error {
	svc, err := poller.NewService(m.cfg.Poller, poller.Dependencies{
		Feed:         m.feed,
		Availability: m.feed,
		Clock:        m.clock,
	}, m.logger)
	if err != nil {
		return fmt.Errorf("failed to create poller: %w", err)
	}
	m.poller = svc
	return nil
}

func (m *Manager) initRelay(ctx context.Context) error {
	rc := m.cfg.Relay
	if !rc.Enabled {
		return nil
	}

	storage, err := pubsub.ParseStorage(rc.Storage)
	if err != nil {
		return err
	}

	provider := pubsubProviderFactory(rc, m.logger)
	m.broker = provider
	if c, ok := provider.(pubsub.Connectable); ok {
		if err := c.Connect(ctx); err != nil {
			return err
		}
	}

	pub, err := provider.NewPublisher(pubsub.PublisherOptions{
		StreamName:    rc.StreamName,
		SubjectPrefix: rc.SubjectPrefix,
		RetryAttempts: rc.RetryAttempts,
		Storage:       storage,
	})
	if err != nil {
		return fmt.Errorf("failed to create relay publisher: %w", err)
	}
	m.relayPub = pub

	m.relay = relay.New(pub, rc.PublishTimeout, m.logger)
	if _, err := m.relay.Attach(m.poller, rc.Filter, m.cfg.Poller.Subscriber.QueueLimit); err != nil {
		return fmt.Errorf("failed to attach relay: %w", err)
	}

	m.logger.Info("Relay enabled", "provider", rc.Provider, "stream", rc.StreamName, "prefix", rc.SubjectPrefix)
	return nil
}
