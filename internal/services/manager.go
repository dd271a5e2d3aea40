// Package services wires the feedwatch components into one process: the
// change-feed backend, the authorization source, the poller, the optional
// pubsub relay and the health endpoint.
package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/juju/clock"

	"github.com/syntrixbase/feedwatch/internal/auth"
	"github.com/syntrixbase/feedwatch/internal/config"
	"github.com/syntrixbase/feedwatch/internal/core/pubsub"
	"github.com/syntrixbase/feedwatch/internal/feed"
	"github.com/syntrixbase/feedwatch/internal/poller"
	"github.com/syntrixbase/feedwatch/internal/relay"
)

type changeFeed interface {
	feed.ChangeFeedService
	feed.AvailabilityService
}

type Options struct {
	// Clock drives the poller and token expiry. Defaults to clock.WallClock.
	Clock clock.Clock
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

type Manager struct {
	cfg    *config.Config
	clock  clock.Clock
	logger *slog.Logger

	feed     changeFeed
	poller   poller.Service
	tokens   *auth.TokenSource
	broker   pubsub.Provider
	relayPub pubsub.Publisher
	relay    *relay.Relay

	// closers release backend resources after the poller has stopped.
	closers []func(ctx context.Context) error

	wg sync.WaitGroup
}

func NewManager(cfg *config.Config, opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		cfg:    cfg,
		clock:  opts.Clock,
		logger: opts.Logger,
	}
}

// Poller returns the poller, nil before Init.
func (m *Manager) Poller() poller.Service {
	return m.poller
}

// Broker returns the provider the relay publishes to, nil when the relay is
// disabled. With the memory provider this is how in-process consumers
// subscribe to relayed changes.
func (m *Manager) Broker() pubsub.Provider {
	return m.broker
}

// Relay returns the relay, nil when it is disabled.
func (m *Manager) Relay() *relay.Relay {
	return m.relay
}
