package services

import (
	"context"
)

// Shutdown stops the poller, waits for background tasks and releases the
// relay and backend connections. The caller cancels the Start context first.
func (m *Manager) Shutdown(ctx context.Context) {
	if m.poller != nil {
		if err := m.poller.Close(); err != nil {
			m.logger.Warn("Error closing poller", "error", err)
		}
	}
	if m.tokens != nil {
		m.tokens.Close()
	}

	m.logger.Info("Waiting for background tasks to finish")
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for background tasks")
	}

	if m.relayPub != nil {
		if err := m.relayPub.Close(); err != nil {
			m.logger.Warn("Error closing relay publisher", "error", err)
		}
	}
	if m.broker != nil {
		if err := m.broker.Close(); err != nil {
			m.logger.Warn("Error closing pubsub provider", "error", err)
		}
	}
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i](ctx); err != nil {
			m.logger.Warn("Error closing backend", "error", err)
		}
	}
}
