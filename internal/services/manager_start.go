package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/syntrixbase/feedwatch/internal/config"
	"github.com/syntrixbase/feedwatch/internal/feed"
	"github.com/syntrixbase/feedwatch/internal/poller"
)

// Start runs the background tasks until bgCtx is done.
func (m *Manager) Start(bgCtx context.Context) {
	if hc := m.cfg.Health; hc.Enabled {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := poller.StartHealthServer(bgCtx, hc.Addr, hc.Path, m.poller.Health()); err != nil {
				m.logger.Error("Health server stopped", "error", err)
			}
		}()
	}

	if m.tokens == nil {
		m.poller.HandleAuthorization(feed.Authorization{
			Authenticated: true,
			SessionID:     uuid.NewString(),
			Subject:       config.AuthModeNone,
		})
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.poller.Run(bgCtx, m.tokens); err != nil && bgCtx.Err() == nil {
			m.logger.Error("Authorization loop stopped", "error", err)
		}
	}()

	if path := m.cfg.Auth.TokenFile; path != "" {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := m.tokens.WatchFile(bgCtx, path); err != nil {
				m.logger.Error("Token file watch stopped", "path", path, "error", err)
			}
		}()
	}
}
