package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"livechat/config"
	"livechat/internal/service"
	ws "livechat/internal/transport/websocket"
)

// IdleMonitor periodically closes sessions whose user went silent. Each tick
// lists candidate sessions, then terminates them one by one; the termination
// itself re-checks idleness so a session that woke up in between is skipped.
type IdleMonitor struct {
	chat   service.ChatService
	hub    *ws.ChatHub
	cfg    config.ChatConfig
	logger *zap.Logger
}

func NewIdleMonitor(chat service.ChatService, hub *ws.ChatHub, cfg config.ChatConfig, logger *zap.Logger) *IdleMonitor {
	return &IdleMonitor{chat: chat, hub: hub, cfg: cfg, logger: logger}
}

func (m *IdleMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.IdleSweepInterval)
	defer ticker.Stop()

	m.logger.Info("idle session monitor started",
		zap.Duration("interval", m.cfg.IdleSweepInterval),
		zap.Duration("cutoff", m.cfg.IdleCutoff))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("idle session monitor stopped")
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *IdleMonitor) sweep(ctx context.Context) {
	keys, err := m.chat.SessionKeysForIdleTermination(ctx)
	if err != nil {
		m.logger.Error("failed to list idle sessions", zap.Error(err))
		return
	}

	for _, key := range keys {
		result, err := m.chat.SendIdleTerminationIfNeeded(ctx, key)
		if err != nil {
			m.logger.Error("failed to terminate idle session",
				zap.String("session_key", key), zap.Error(err))
			continue
		}
		if result == nil {
			continue
		}

		m.hub.BroadcastToSession(result.SessionKey, ws.EventReceiveMessage, map[string]interface{}{
			"id":         result.MessageID,
			"sender_id":  result.SenderID,
			"content":    result.Content,
			"type":       "system",
			"created_at": result.CreatedAt,
			"role":       "system",
		})
		m.hub.BroadcastToSession(result.SessionKey, ws.EventSessionEnded, map[string]interface{}{
			"session_key": result.SessionKey,
			"reason":      "IdleTerminated",
		})

		m.logger.Info("idle session terminated", zap.String("session_key", result.SessionKey))
	}
}
