package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"livechat/config"
	"livechat/internal/service"
	ws "livechat/internal/transport/websocket"
)

// PresenceMonitor pushes presence transitions to admins. Polling keeps the
// derivation in one place; only actual status changes go over the wire.
type PresenceMonitor struct {
	presence service.PresenceService
	hub      *ws.ChatHub
	cfg      config.PresenceConfig
	logger   *zap.Logger
}

func NewPresenceMonitor(presence service.PresenceService, hub *ws.ChatHub, cfg config.PresenceConfig, logger *zap.Logger) *PresenceMonitor {
	return &PresenceMonitor{presence: presence, hub: hub, cfg: cfg, logger: logger}
}

func (m *PresenceMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	m.logger.Info("presence monitor started", zap.Duration("interval", m.cfg.SweepInterval))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("presence monitor stopped")
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *PresenceMonitor) sweep(ctx context.Context) {
	changes, err := m.presence.DetectPresenceChanges(ctx)
	if err != nil {
		m.logger.Error("failed to detect presence changes", zap.Error(err))
		return
	}

	for _, change := range changes {
		m.hub.BroadcastToAdmins(ws.EventUserPresenceChanged, change)
	}

	if len(changes) > 0 {
		m.logger.Debug("presence changes broadcast", zap.Int("count", len(changes)))
	}
}
