// Package poller implements the change-feed poller.
//
// The poller keeps a client in sync with server-side mutations without push
// notifications. It periodically asks a change feed what changed since its
// watermark, advances the watermark only on success, never has two such
// requests in flight, starts and stops with the authorization state, and
// republishes change sets to in-process subscribers without blocking the
// poll loop.
//
// # Usage
//
//	svc, err := poller.NewService(cfg.Poller, poller.Dependencies{
//		Feed:         changeFeed,
//		Availability: availability,
//	}, logger)
//	sub, err := svc.Subscribe("map-view", func(cs *feed.ChangeSet) { ... })
//	go svc.Run(ctx, authSource)
//	defer svc.Close()
//
// # Package Organization
//
// The package is organized into internal subpackages:
//   - core: availability gate, scheduler and fetch cycle
//   - publisher: per-subscriber queues and delivery goroutines
//   - filter: CEL filters for subscriptions
//   - health: poll outcome tracking and HTTP health endpoint
package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/syntrixbase/feedwatch/internal/feed"
	"github.com/syntrixbase/feedwatch/internal/poller/config"
	"github.com/syntrixbase/feedwatch/internal/poller/internal/core"
	"github.com/syntrixbase/feedwatch/internal/poller/internal/health"
	"github.com/syntrixbase/feedwatch/internal/poller/internal/publisher"
)

// Service defines the interface of the change-feed poller.
type Service interface {
	// HandleAuthorization applies an authorization transition.
	HandleAuthorization(auth feed.Authorization)

	// Run consumes transitions from source until ctx is done.
	Run(ctx context.Context, source feed.AuthorizationSource) error

	// Subscribe registers a change-set handler.
	Subscribe(name string, handler Handler, opts ...Option) (*Subscription, error)

	// State returns the current polling state.
	State() State

	// Watermark returns the last observed feed time (zero when undefined).
	Watermark() time.Time

	// Health returns the health checker.
	Health() *HealthChecker

	// Close stops polling and releases resources.
	Close() error
}

// Re-export types from internal packages for public API.
type (
	// Dependencies are the collaborators a poller consumes.
	Dependencies = core.Dependencies

	// State is the polling state.
	State = core.State

	// Handler receives change sets in publish order.
	Handler = publisher.Handler

	// Option configures a subscription.
	Option = publisher.Option

	// Subscription is an active subscriber.
	Subscription = publisher.Subscription

	// HealthChecker tracks poll outcomes.
	HealthChecker = health.Checker

	// HealthReport is the full health report.
	HealthReport = health.Report

	// HealthStatus represents the health status of the poller.
	HealthStatus = health.Status
)

// Polling states.
const (
	Stopped  = core.Stopped
	Armed    = core.Armed
	InFlight = core.InFlight
)

// Health status constants.
const (
	HealthOK       = health.StatusOK
	HealthDegraded = health.StatusDegraded
	HealthIdle     = health.StatusIdle
)

// WithFilter delivers only changes matching a CEL expression over "change".
func WithFilter(expr string) Option { return publisher.WithFilter(expr) }

// WithQueueLimit bounds one subscription's queue (0 = unbounded).
func WithQueueLimit(n int) Option { return publisher.WithQueueLimit(n) }

// NewService creates a stopped, unauthorized poller.
func NewService(cfg config.Config, deps Dependencies, logger *slog.Logger) (Service, error) {
	p, err := core.New(cfg, deps, logger)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// StartHealthServer serves the checker on addr until ctx is done.
func StartHealthServer(ctx context.Context, addr, path string, checker *HealthChecker) error {
	return health.StartServer(ctx, addr, path, checker)
}
