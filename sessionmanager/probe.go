package sessionmanager

import (
	"context"
	"time"
)

// startProbe checks the session every interval while one exists, so a backend
// that restarted and forgot its sessions is noticed before the next refresh.
func (m *Manager) startProbe(ctx context.Context, interval time.Duration) {
	m.stopProbe()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.mu.Lock()
	m.probeStop = cancel
	m.probeDone = done
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !m.store.State().IsAuthenticated {
					continue
				}
				if _, err := m.Probe(ctx); err != nil {
					m.logger.Debug().Err(err).Msg("session probe")
				}
			}
		}
	}()
}

func (m *Manager) stopProbe() {
	m.mu.Lock()
	cancel, done := m.probeStop, m.probeDone
	m.probeStop, m.probeDone = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
