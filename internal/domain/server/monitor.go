package server

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/interlink/engine/internal/platform/health"
)

// Monitor periodically probes every registered server and records
// status flips. Probe failures only mark the server Inactive; nothing
// is ever deregistered automatically.
type Monitor struct {
	servers  ServerRepository
	prober   health.Prober
	interval time.Duration
	logger   zerolog.Logger
}

func NewMonitor(servers ServerRepository, prober health.Prober, interval time.Duration, logger zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Monitor{
		servers:  servers,
		prober:   prober,
		interval: interval,
		logger:   logger.With().Str("component", "server_monitor").Logger(),
	}
}

// Run probes until ctx is cancelled. The first sweep happens immediately.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info().Dur("interval", m.interval).Msg("server health monitor started")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("server health monitor stopped")
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Monitor) sweep(ctx context.Context) {
	servers, err := m.servers.List(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("server listing failed, skipping sweep")
		return
	}
	for _, srv := range servers {
		status := StatusInactive
		if m.prober.Healthy(ctx, srv.IP, srv.Port) {
			status = StatusActive
		}
		if status == srv.Status {
			continue
		}
		if err := m.servers.UpdateStatus(ctx, srv.ID, status); err != nil {
			m.logger.Error().Err(err).Str("server", srv.Name).Msg("status update failed")
			continue
		}
		m.logger.Info().Str("server", srv.Name).Str("from", srv.Status).Str("to", status).
			Msg("server status changed")
	}
}
