package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"livechat/internal/domain"
	"livechat/internal/repository"
)

type SettingsServiceImpl struct {
	repo   repository.SettingsRepository
	logger *zap.Logger
}

func NewSettingsService(repo repository.SettingsRepository, logger *zap.Logger) *SettingsServiceImpl {
	return &SettingsServiceImpl{repo: repo, logger: logger}
}

func (s *SettingsServiceImpl) Get(ctx context.Context) (*domain.ChatSettings, error) {
	return s.repo.Get(ctx)
}

// MaxUserMessageLength is the limit applied to user sends; changes take effect
// on the next message.
func (s *SettingsServiceImpl) MaxUserMessageLength(ctx context.Context) (int, error) {
	settings, err := s.repo.Get(ctx)
	if err != nil {
		return 0, err
	}
	return settings.MaxUserMessageLength, nil
}

func (s *SettingsServiceImpl) UpdateMaxUserMessageLength(ctx context.Context, value int, adminID int64) (*domain.ChatSettings, error) {
	if adminID == 0 {
		return nil, domain.NewInternalError("admin id is required")
	}

	if value < domain.MinUserMessageLength || value > domain.MaxUserMessageLength {
		return nil, domain.NewValidationError(fmt.Sprintf(
			"max message length must be between %d and %d",
			domain.MinUserMessageLength, domain.MaxUserMessageLength))
	}

	settings, err := s.repo.UpdateMaxUserMessageLength(ctx, value, adminID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("max user message length updated",
		zap.Int("value", value), zap.Int64("admin_id", adminID))

	return settings, nil
}

func (s *SettingsServiceImpl) UpdateMaxSessionDurationMinutes(ctx context.Context, value int, adminID int64) (*domain.ChatSettings, error) {
	if adminID == 0 {
		return nil, domain.NewInternalError("admin id is required")
	}

	if value < 0 || value > domain.MaxSessionDurationCapMinutes {
		return nil, domain.NewValidationError(fmt.Sprintf(
			"session duration must be between 0 and %d minutes",
			domain.MaxSessionDurationCapMinutes))
	}

	settings, err := s.repo.UpdateMaxSessionDurationMinutes(ctx, value, adminID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("max session duration updated",
		zap.Int("minutes", value), zap.Int64("admin_id", adminID))

	return settings, nil
}
