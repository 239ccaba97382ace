package service

import (
	"context"

	"go.uber.org/zap"

	"livechat/config"
	"livechat/internal/domain"
	"livechat/internal/repository"
)

type Deps struct {
	Repos  *repository.Repositories
	Logger *zap.Logger
	Config *config.Config
}

type Services struct {
	Auth     AuthService
	Chat     ChatService
	Settings SettingsService
	Presence PresenceService
}

func NewServices(deps Deps) *Services {
	return &Services{
		Auth:     NewAuthService(deps.Repos.Auth, deps.Repos.User, deps.Config.JWT, deps.Logger),
		Chat:     NewChatService(deps.Repos.Chat, deps.Repos.User, deps.Repos.Settings, deps.Config.Chat, deps.Logger),
		Settings: NewSettingsService(deps.Repos.Settings, deps.Logger),
		Presence: NewPresenceService(deps.Repos.User, deps.Config.Presence, deps.Logger),
	}
}

type AuthService interface {
	Register(ctx context.Context, dto domain.RegisterRequest) (int64, error)
	Login(ctx context.Context, dto domain.LoginRequest, userAgent, ip string) (*domain.Tokens, error)
	RefreshTokens(ctx context.Context, refreshToken, userAgent, ip string) (*domain.Tokens, error)
	Logout(ctx context.Context, refreshToken string) error
	ParseToken(ctx context.Context, token string) (int64, domain.UserRole, error)
}

type ChatService interface {
	GetOrCreateSession(ctx context.Context, userID, adminID int64) (*domain.ChatSession, error)
	GetOrCreateUserSession(ctx context.Context, userID int64) (*domain.ChatSession, error)
	GetAdminSessions(ctx context.Context, adminID int64) ([]domain.ChatSessionSummary, error)
	SendMessage(ctx context.Context, cmd domain.SendMessageCommand, maxMessageLength int) (*domain.SendMessageResult, error)
	GetHistory(ctx context.Context, requesterID int64, requesterRole domain.UserRole, sessionKey string) ([]domain.ChatHistoryItem, error)
	MarkMessagesAsSeen(ctx context.Context, sessionKey string, viewerID int64, viewerRole domain.UserRole) ([]int64, error)
	GetSessionInfo(ctx context.Context, sessionKey string, requesterID int64, requesterRole domain.UserRole) (*domain.ChatSession, error)
	SessionKeysForIdleTermination(ctx context.Context) ([]string, error)
	SendIdleTerminationIfNeeded(ctx context.Context, sessionKey string) (*domain.IdleTerminationResult, error)
}

type SettingsService interface {
	Get(ctx context.Context) (*domain.ChatSettings, error)
	MaxUserMessageLength(ctx context.Context) (int, error)
	UpdateMaxUserMessageLength(ctx context.Context, value int, adminID int64) (*domain.ChatSettings, error)
	UpdateMaxSessionDurationMinutes(ctx context.Context, value int, adminID int64) (*domain.ChatSettings, error)
}

type PresenceService interface {
	UpdateHeartbeat(ctx context.Context, userID int64, role domain.UserRole) error
	ConnectionOpened(userID int64)
	ConnectionClosed(userID int64)
	GetUserPresenceList(ctx context.Context) ([]domain.UserPresence, error)
	DetectPresenceChanges(ctx context.Context) ([]domain.PresenceChange, error)
}
