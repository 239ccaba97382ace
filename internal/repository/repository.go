package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"livechat/internal/domain"
)

type Repositories struct {
	User     UserRepository
	Auth     AuthRepository
	Chat     ChatRepository
	Settings SettingsRepository
}

func NewRepositories(db *pgxpool.Pool) *Repositories {
	return &Repositories{
		User:     NewUserRepository(db),
		Auth:     NewAuthRepository(db),
		Chat:     NewChatRepository(db),
		Settings: NewSettingsRepository(db),
	}
}

type UserRepository interface {
	Create(ctx context.Context, user domain.CreateUserDTO) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Exists(ctx context.Context, id int64) (bool, error)
	ListByRole(ctx context.Context, role domain.UserRole, limit int) ([]domain.User, error)
	UpdateHeartbeat(ctx context.Context, id int64, role domain.UserRole, at time.Time) error
}

type AuthRepository interface {
	CreateSession(ctx context.Context, session domain.Session) error
	GetSessionByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteSessionsByUserID(ctx context.Context, userID int64) error
}

// CreateChatSessionDTO carries the initial state of a new chat session.
type CreateChatSessionDTO struct {
	SessionKey         string
	UserID             int64
	AdminID            *int64
	StartedAt          *time.Time
	MaxDurationMinutes int
}

// CreateMessageDTO carries a persisted-as-unseen message.
type CreateMessageDTO struct {
	ChatSessionID int64
	SenderID      int64
	Content       string
	Type          domain.MessageType
}

type ChatRepository interface {
	CreateSession(ctx context.Context, dto CreateChatSessionDTO) (*domain.ChatSession, error)
	// The single-session lookups return (nil, nil) when no matching active
	// session exists; a non-nil error always means a storage failure.
	GetActiveSessionByKey(ctx context.Context, sessionKey string) (*domain.ChatSession, error)
	GetActiveSessionByUser(ctx context.Context, userID int64) (*domain.ChatSession, error)
	GetActiveSessionForAdmin(ctx context.Context, userID, adminID int64) (*domain.ChatSession, error)
	ListActiveSessionsForAdmin(ctx context.Context, adminID int64) ([]domain.ChatSession, error)

	// ClaimSession assigns adminID only while admin_id is still NULL and reports
	// whether this call won the claim.
	ClaimSession(ctx context.Context, sessionID, adminID int64) (bool, error)
	UpdateSessionTimer(ctx context.Context, sessionID int64, startedAt *time.Time, maxDurationMinutes int) error
	TouchLastUserMessage(ctx context.Context, sessionID int64, at time.Time) error
	CloseSession(ctx context.Context, sessionID int64) error

	CreateMessage(ctx context.Context, dto CreateMessageDTO) (*domain.Message, error)
	ListHistory(ctx context.Context, sessionID int64, limit int) ([]domain.ChatHistoryItem, error)
	MarkMessagesSeen(ctx context.Context, sessionID, senderID int64) ([]int64, error)
	CountUnseenFromSender(ctx context.Context, sessionID, senderID int64) (int64, error)
	UnseenCountsForAdmin(ctx context.Context, adminID int64) (map[int64]int64, error)

	ListIdleTerminationCandidates(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
	// TerminateIdleSession re-checks idleness inside a transaction, appends the
	// system message and closes the session in one commit. Returns nil message
	// when the session no longer qualifies.
	TerminateIdleSession(ctx context.Context, sessionKey string, senderID int64, content string, cutoff time.Time) (*domain.Message, error)
}

type SettingsRepository interface {
	Get(ctx context.Context) (*domain.ChatSettings, error)
	UpdateMaxUserMessageLength(ctx context.Context, value int, adminID int64) (*domain.ChatSettings, error)
	UpdateMaxSessionDurationMinutes(ctx context.Context, value int, adminID int64) (*domain.ChatSettings, error)
}
