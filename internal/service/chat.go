package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"livechat/config"
	"livechat/internal/domain"
	"livechat/internal/repository"
)

// ChatServiceImpl owns chat-session lifecycle and message persistence.
// Broadcasting is the transport's job: every method returns plain data and the
// REST layer / monitors push it through the websocket hub after persistence.
type ChatServiceImpl struct {
	chatRepo     repository.ChatRepository
	userRepo     repository.UserRepository
	settingsRepo repository.SettingsRepository
	cfg          config.ChatConfig
	logger       *zap.Logger
}

func NewChatService(
	chatRepo repository.ChatRepository,
	userRepo repository.UserRepository,
	settingsRepo repository.SettingsRepository,
	cfg config.ChatConfig,
	logger *zap.Logger,
) *ChatServiceImpl {
	return &ChatServiceImpl{
		chatRepo:     chatRepo,
		userRepo:     userRepo,
		settingsRepo: settingsRepo,
		cfg:          cfg,
		logger:       logger,
	}
}

func newSessionKey() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// GetOrCreateSession resolves a session for the admin side: prefer the user's
// active session already assigned to this admin, claim it when unassigned, or
// create a fresh one. The claim is a conditional update, so of two admins
// opening the same user simultaneously exactly one wins; the loser still gets
// the session back and is rejected at its next write by the authorization
// check in SendMessage/MarkMessagesAsSeen.
func (s *ChatServiceImpl) GetOrCreateSession(ctx context.Context, userID, adminID int64) (*domain.ChatSession, error) {
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := s.chatRepo.GetActiveSessionForAdmin(ctx, userID, adminID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.AdminID == nil {
			claimed, err := s.chatRepo.ClaimSession(ctx, existing.ID, adminID)
			if err != nil {
				return nil, err
			}
			if claimed {
				existing.AdminID = &adminID
			} else {
				// Lost the race; reload to see who owns it now.
				reloaded, err := s.chatRepo.GetActiveSessionByKey(ctx, existing.SessionKey)
				if err != nil {
					return nil, err
				}
				if reloaded != nil {
					existing = reloaded
				}
			}
		}

		now := time.Now().UTC()
		startedAt := existing.StartedAt
		if startedAt == nil {
			startedAt = &now
		}
		if err := s.chatRepo.UpdateSessionTimer(ctx, existing.ID, startedAt, settings.MaxSessionDurationMinutes); err != nil {
			return nil, err
		}
		existing.StartedAt = startedAt
		existing.MaxDurationMinutes = settings.MaxSessionDurationMinutes

		return existing, nil
	}

	// The user's session may already belong to another admin. Return it
	// read-only rather than violating the one-active-session rule; sends by
	// this admin will be rejected.
	other, err := s.chatRepo.GetActiveSessionByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if other != nil {
		return other, nil
	}

	now := time.Now().UTC()
	return s.chatRepo.CreateSession(ctx, repository.CreateChatSessionDTO{
		SessionKey:         newSessionKey(),
		UserID:             userID,
		AdminID:            &adminID,
		StartedAt:          &now,
		MaxDurationMinutes: settings.MaxSessionDurationMinutes,
	})
}

// GetOrCreateUserSession resolves the user's own session. This is the only
// path that replaces an expired session with a fresh one; duration expiry
// elsewhere merely blocks sends.
func (s *ChatServiceImpl) GetOrCreateUserSession(ctx context.Context, userID int64) (*domain.ChatSession, error) {
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	existing, err := s.chatRepo.GetActiveSessionByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		existing.MaxDurationMinutes = settings.MaxSessionDurationMinutes
		if existing.Expired(now) {
			if err := s.chatRepo.CloseSession(ctx, existing.ID); err != nil {
				return nil, err
			}
		} else {
			startedAt := existing.StartedAt
			if startedAt == nil {
				startedAt = &now
			}
			if err := s.chatRepo.UpdateSessionTimer(ctx, existing.ID, startedAt, settings.MaxSessionDurationMinutes); err != nil {
				return nil, err
			}
			existing.StartedAt = startedAt

			return existing, nil
		}
	}

	return s.chatRepo.CreateSession(ctx, repository.CreateChatSessionDTO{
		SessionKey:         newSessionKey(),
		UserID:             userID,
		AdminID:            nil,
		StartedAt:          &now,
		MaxDurationMinutes: settings.MaxSessionDurationMinutes,
	})
}

// GetAdminSessions builds the admin inbox: every registered user, with session
// key, unread count and presence fields when an active session is visible to
// this admin. The user scan is capped; an inbox past that size needs real
// pagination.
const adminSessionListCap = 500

func (s *ChatServiceImpl) GetAdminSessions(ctx context.Context, adminID int64) ([]domain.ChatSessionSummary, error) {
	users, err := s.userRepo.ListByRole(ctx, domain.UserRoleUser, adminSessionListCap)
	if err != nil {
		return nil, err
	}

	sessions, err := s.chatRepo.ListActiveSessionsForAdmin(ctx, adminID)
	if err != nil {
		return nil, err
	}

	unreadBySession, err := s.chatRepo.UnseenCountsForAdmin(ctx, adminID)
	if err != nil {
		return nil, err
	}

	sessionByUser := make(map[int64]*domain.ChatSession, len(sessions))
	for i := range sessions {
		sessionByUser[sessions[i].UserID] = &sessions[i]
	}

	summaries := make([]domain.ChatSessionSummary, 0, len(users))
	for _, u := range users {
		summary := domain.ChatSessionSummary{
			UserID:          u.ID,
			UserNameOrEmail: u.NameOrEmail(),
			IsOnline:        u.IsOnline,
			LastSeen:        u.LastSeen,
		}
		if session, ok := sessionByUser[u.ID]; ok {
			key := session.SessionKey
			summary.ChatSessionKey = &key
			summary.UnreadCount = unreadBySession[session.ID]
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// SendMessage validates and persists a message. Validation is fail-fast and
// leaves no side effects; the session claim inside the authorization step is
// the single intended mutation before the insert.
func (s *ChatServiceImpl) SendMessage(ctx context.Context, cmd domain.SendMessageCommand, maxMessageLength int) (*domain.SendMessageResult, error) {
	if strings.TrimSpace(cmd.Content) == "" {
		return nil, domain.NewValidationError("message text is required")
	}

	if len([]rune(cmd.Content)) > maxMessageLength {
		return nil, domain.NewMessageTooLongError(maxMessageLength)
	}

	if strings.TrimSpace(cmd.ChatSessionKey) == "" {
		return nil, domain.NewValidationError("chatSessionId is required")
	}

	if cmd.SenderID == 0 {
		return nil, domain.NewInternalError("sender id is required")
	}

	if cmd.Role != domain.UserRoleAdmin && cmd.Role != domain.UserRoleUser {
		return nil, domain.NewValidationError("role must be admin or user")
	}

	exists, err := s.userRepo.Exists(ctx, cmd.SenderID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.NewNotFoundError("sender does not exist")
	}

	session, err := s.chatRepo.GetActiveSessionByKey(ctx, cmd.ChatSessionKey)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.NewValidationError("chat session not found")
	}

	if err := s.authorize(ctx, session, cmd.SenderID, cmd.Role); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if cmd.Role == domain.UserRoleUser {
		settings, err := s.settingsRepo.Get(ctx)
		if err != nil {
			return nil, err
		}
		session.MaxDurationMinutes = settings.MaxSessionDurationMinutes
		// Expiry blocks the send but does not close the session; closure is the
		// job of the idle sweep or the user-side get-or-create path.
		if session.Expired(now) {
			return nil, domain.ErrSessionExpired
		}
	}

	messageType := cmd.Type
	if messageType == "" {
		messageType = domain.MessageTypeText
	}

	message, err := s.chatRepo.CreateMessage(ctx, repository.CreateMessageDTO{
		ChatSessionID: session.ID,
		SenderID:      cmd.SenderID,
		Content:       cmd.Content,
		Type:          messageType,
	})
	if err != nil {
		return nil, err
	}

	result := &domain.SendMessageResult{
		Message:    message,
		SessionKey: session.SessionKey,
		Role:       cmd.Role,
	}

	if cmd.Role == domain.UserRoleUser {
		if err := s.chatRepo.TouchLastUserMessage(ctx, session.ID, message.CreatedAt); err != nil {
			s.logger.Error("failed to update last user message timestamp",
				zap.String("session_key", session.SessionKey), zap.Error(err))
		}

		unread, err := s.chatRepo.CountUnseenFromSender(ctx, session.ID, session.UserID)
		if err != nil {
			s.logger.Error("failed to count unread messages",
				zap.String("session_key", session.SessionKey), zap.Error(err))
		} else {
			userID := session.UserID
			result.SessionUserID = &userID
			result.UnreadCountForAdmin = &unread
		}
	}

	return result, nil
}

// authorize enforces session access: users only their own session, admins only
// unassigned (claiming on first write) or already-theirs sessions.
func (s *ChatServiceImpl) authorize(ctx context.Context, session *domain.ChatSession, actorID int64, role domain.UserRole) error {
	if role == domain.UserRoleUser {
		if session.UserID != actorID {
			return domain.ErrForbidden
		}
		return nil
	}

	if session.AdminID == nil {
		claimed, err := s.chatRepo.ClaimSession(ctx, session.ID, actorID)
		if err != nil {
			return err
		}
		if claimed {
			session.AdminID = &actorID
			return nil
		}
		// Claim raced; reload and fall through to the ownership check.
		reloaded, err := s.chatRepo.GetActiveSessionByKey(ctx, session.SessionKey)
		if err != nil {
			return err
		}
		if reloaded == nil {
			return domain.ErrForbidden
		}
		*session = *reloaded
	}

	if session.AdminID == nil || *session.AdminID != actorID {
		return domain.ErrForbidden
	}

	return nil
}

// readAuthorize is the authorization used by history/mark-seen/session-info:
// same ownership rules as sends, but an admin viewing an unassigned session
// does not claim it.
func readAuthorize(session *domain.ChatSession, actorID int64, role domain.UserRole) error {
	if role == domain.UserRoleUser {
		if session.UserID != actorID {
			return domain.ErrForbidden
		}
		return nil
	}

	if session.AdminID != nil && *session.AdminID != actorID {
		return domain.ErrForbidden
	}

	return nil
}

func (s *ChatServiceImpl) GetHistory(ctx context.Context, requesterID int64, requesterRole domain.UserRole, sessionKey string) ([]domain.ChatHistoryItem, error) {
	if strings.TrimSpace(sessionKey) == "" {
		return []domain.ChatHistoryItem{}, nil
	}

	if requesterID == 0 {
		return nil, domain.NewInternalError("requester id is required")
	}

	if requesterRole != domain.UserRoleAdmin && requesterRole != domain.UserRoleUser {
		return nil, domain.NewValidationError("requester role must be admin or user")
	}

	session, err := s.chatRepo.GetActiveSessionByKey(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return []domain.ChatHistoryItem{}, nil
	}

	if err := readAuthorize(session, requesterID, requesterRole); err != nil {
		return nil, err
	}

	items, err := s.chatRepo.ListHistory(ctx, session.ID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.ChatHistoryItem{}
	}

	return items, nil
}

// MarkMessagesAsSeen flips the counterpart's unseen messages and returns their
// ids. Idempotent: a second call returns an empty list.
func (s *ChatServiceImpl) MarkMessagesAsSeen(ctx context.Context, sessionKey string, viewerID int64, viewerRole domain.UserRole) ([]int64, error) {
	if strings.TrimSpace(sessionKey) == "" {
		return []int64{}, nil
	}

	if viewerID == 0 {
		return nil, domain.NewInternalError("viewer id is required")
	}

	if viewerRole != domain.UserRoleAdmin && viewerRole != domain.UserRoleUser {
		return nil, domain.NewValidationError("viewer role must be admin or user")
	}

	session, err := s.chatRepo.GetActiveSessionByKey(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return []int64{}, nil
	}

	if err := readAuthorize(session, viewerID, viewerRole); err != nil {
		return nil, err
	}

	// The viewer marks the other party's messages: user sees admin messages,
	// admin sees user messages. An unclaimed session has no admin to mark.
	var otherPartyID int64
	if viewerRole == domain.UserRoleUser {
		if session.AdminID == nil {
			return []int64{}, nil
		}
		otherPartyID = *session.AdminID
	} else {
		otherPartyID = session.UserID
	}

	ids, err := s.chatRepo.MarkMessagesSeen(ctx, session.ID, otherPartyID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int64{}
	}

	return ids, nil
}

// GetSessionInfo returns the session for countdown display, or nil on any
// not-found or authorization condition. Not a security boundary on its own;
// send/history/mark-seen still enforce access.
func (s *ChatServiceImpl) GetSessionInfo(ctx context.Context, sessionKey string, requesterID int64, requesterRole domain.UserRole) (*domain.ChatSession, error) {
	if strings.TrimSpace(sessionKey) == "" || requesterID == 0 {
		return nil, nil
	}

	session, err := s.chatRepo.GetActiveSessionByKey(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}

	if err := readAuthorize(session, requesterID, requesterRole); err != nil {
		return nil, nil
	}

	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, err
	}

	if session.MaxDurationMinutes != settings.MaxSessionDurationMinutes {
		if err := s.chatRepo.UpdateSessionTimer(ctx, session.ID, session.StartedAt, settings.MaxSessionDurationMinutes); err != nil {
			return nil, err
		}
		session.MaxDurationMinutes = settings.MaxSessionDurationMinutes
	}

	return session, nil
}

// SessionKeysForIdleTermination lists sessions whose user has been silent past
// the fixed idle cutoff, oldest first. The cutoff is independent of the
// admin-configured duration cap.
func (s *ChatServiceImpl) SessionKeysForIdleTermination(ctx context.Context) ([]string, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.IdleCutoff)
	return s.chatRepo.ListIdleTerminationCandidates(ctx, cutoff, s.cfg.IdleTerminationBatch)
}

// SendIdleTerminationIfNeeded closes an idle session and appends the system
// notice. Idleness is re-checked transactionally at execution time, so a
// session that woke up between listing and acting is skipped and the notice is
// never sent twice. A missing system sender is a configuration precondition
// and makes this a no-op.
func (s *ChatServiceImpl) SendIdleTerminationIfNeeded(ctx context.Context, sessionKey string) (*domain.IdleTerminationResult, error) {
	systemSender, err := s.userRepo.GetByEmail(ctx, s.cfg.SystemSenderEmail)
	if err != nil || systemSender == nil {
		s.logger.Warn("system sender unavailable, skipping idle termination",
			zap.String("email", s.cfg.SystemSenderEmail), zap.Error(err))
		return nil, nil
	}

	cutoff := time.Now().UTC().Add(-s.cfg.IdleCutoff)
	message, err := s.chatRepo.TerminateIdleSession(ctx, sessionKey, systemSender.ID, domain.IdleTerminationNotice, cutoff)
	if err != nil {
		return nil, err
	}
	if message == nil {
		return nil, nil
	}

	return &domain.IdleTerminationResult{
		SessionKey: sessionKey,
		MessageID:  message.ID,
		SenderID:   message.SenderID,
		Content:    message.Content,
		CreatedAt:  message.CreatedAt,
	}, nil
}
