package rest

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"livechat/internal/domain"
	"livechat/internal/storage"
	ws "livechat/internal/transport/websocket"
)

type sendMessageInput struct {
	ChatSessionID string             `json:"chat_session_id" binding:"required"`
	Content       string             `json:"content"`
	Type          domain.MessageType `json:"type"`
}

type messageView struct {
	ID        int64              `json:"id"`
	SenderID  int64              `json:"sender_id"`
	Content   string             `json:"content"`
	Type      domain.MessageType `json:"type"`
	IsSeen    bool               `json:"is_seen"`
	CreatedAt time.Time          `json:"created_at"`
	Role      domain.UserRole    `json:"role"`
}

// @Summary Send a chat message
// @Description Persists a message in the session and notifies its participants
// @Tags Chat
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param input body sendMessageInput true "Message payload"
// @Success 201 {object} successResponseBody "Created message"
// @Failure 400 {object} errorResponseBody "Validation error"
// @Failure 403 {object} errorResponseBody "Access denied"
// @Failure 404 {object} errorResponseBody "Sender not found"
// @Failure 410 {object} errorResponseBody "Session duration exceeded"
// @Router /chat/messages [post]
func (h *Handler) sendMessage(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		errorResponse(c, http.StatusUnauthorized, err.Error())
		return
	}

	role, err := getUserRole(c)
	if err != nil {
		errorResponse(c, http.StatusUnauthorized, err.Error())
		return
	}

	var input sendMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		badRequestResponse(c, "invalid request body")
		return
	}

	maxLength := h.config.Chat.AdminMaxMessageLength
	if role == domain.UserRoleUser {
		maxLength, err = h.services.Settings.MaxUserMessageLength(c.Request.Context())
		if err != nil {
			h.logger.Error("failed to load chat settings", zap.Error(err))
			internalServerErrorResponse(c)
			return
		}
	}

	result, err := h.services.Chat.SendMessage(c.Request.Context(), domain.SendMessageCommand{
		ChatSessionKey: input.ChatSessionID,
		SenderID:       userID,
		Role:           role,
		Content:        input.Content,
		Type:           input.Type,
	}, maxLength)
	if err != nil {
		h.handleSendError(c, input.ChatSessionID, err)
		return
	}

	view := messageView{
		ID:        result.Message.ID,
		SenderID:  result.Message.SenderID,
		Content:   result.Message.Content,
		Type:      result.Message.Type,
		IsSeen:    result.Message.IsSeen,
		CreatedAt: result.Message.CreatedAt,
		Role:      result.Role,
	}

	h.hub.BroadcastToSession(result.SessionKey, ws.EventReceiveMessage, view)

	if result.UnreadCountForAdmin != nil && result.SessionUserID != nil {
		h.hub.BroadcastToAdmins(ws.EventAdminUnreadChanged, gin.H{
			"session_key":  result.SessionKey,
			"user_id":      *result.SessionUserID,
			"unread_count": *result.UnreadCountForAdmin,
		})
	}

	createdResponse(c, view)
}

func (h *Handler) handleSendError(c *gin.Context, sessionKey string, err error) {
	var validationErr *domain.ValidationError
	var notFoundErr *domain.NotFoundError

	switch {
	case errors.As(err, &validationErr):
		validationErrorResponse(c, validationErr.Message, validationErr.MaxLength)
	case errors.As(err, &notFoundErr):
		notFoundResponse(c, notFoundErr.Message)
	case errors.Is(err, domain.ErrForbidden):
		forbiddenResponse(c)
	case errors.Is(err, domain.ErrSessionExpired):
		h.hub.BroadcastToSession(sessionKey, ws.EventSessionEnded, gin.H{
			"session_key": sessionKey,
			"reason":      "DurationExceeded",
		})
		sessionExpiredResponse(c, err.Error())
	default:
		h.logger.Error("failed to send message", zap.Error(err))
		internalServerErrorResponse(c)
	}
}

type sessionView struct {
	SessionKey         string     `json:"session_key"`
	UserID             int64      `json:"user_id"`
	AdminID            *int64     `json:"admin_id,omitempty"`
	IsActive           bool       `json:"is_active"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	MaxDurationMinutes int        `json:"max_duration_minutes"`
	RemainingSeconds   int64      `json:"remaining_seconds"`
}

func toSessionView(s *domain.ChatSession) sessionView {
	return sessionView{
		SessionKey:         s.SessionKey,
		UserID:             s.UserID,
		AdminID:            s.AdminID,
		IsActive:           s.IsActive,
		StartedAt:          s.StartedAt,
		MaxDurationMinutes: s.MaxDurationMinutes,
		RemainingSeconds:   s.RemainingSeconds(time.Now().UTC()),
	}
}

// @Summary Get or create my chat session
// @Description Returns the caller's active session, replacing an expired one
// @Tags Chat
// @Security BearerAuth
// @Produce json
// @Success 200 {object} successResponseBody "Session"
// @Router /chat/my-session [get]
func (h *Handler) getMySession(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		errorResponse(c, http.StatusUnauthorized, err.Error())
		return
	}

	role, err := getUserRole(c)
	if err != nil || role != domain.UserRoleUser {
		forbiddenResponse(c, "only users have their own session")
		return
	}

	session, err := h.services.Chat.GetOrCreateUserSession(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to resolve user session", zap.Error(err))
		internalServerErrorResponse(c)
		return
	}

	successResponse(c, http.StatusOK, toSessionView(session))
}

// @Summary Open a chat session with a user
// @Description Returns the user's active session, claiming it when unassigned
// @Tags Chat
// @Security BearerAuth
// @Produce json
// @Param userId path int true "User ID"
// @Success 200 {object} successResponseBody "Session"
// @Failure 400 {object} errorResponseBody "Invalid user id"
// @Router /chat/sessions/open/{userId} [post]
func (h *Handler) openSession(c *gin.Context) {
	adminID, err := getUserID(c)
	if err != nil {
		errorResponse(c, http.StatusUnauthorized, err.Error())
		return
	}

	targetID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil || targetID <= 0 {
		badRequestResponse(c, "invalid user id")
		return
	}

	session, err := h.services.Chat.GetOrCreateSession(c.Request.Context(), targetID, adminID)
	if err != nil {
		h.logger.Error("failed to open session",
			zap.Int64("user_id", targetID), zap.Int64("admin_id", adminID), zap.Error(err))
		internalServerErrorResponse(c)
		return
	}

	successResponse(c, http.StatusOK, toSessionView(session))
}

// @Summary List chat sessions
// @Description Returns every user with their session key, unread count and presence
// @Tags Chat
// @Security BearerAuth
// @Produce json
// @Success 200 {object} successResponseBody "Session list"
// @Router /chat/sessions [get]
func (h *Handler) getAdminSessions(c *gin.Context) {
	adminID, err := getUserID(c)
	if err != nil {
		errorResponse(c, http.StatusUnauthorized, err.Error())
		return
	}

	sessions, err := h.services.Chat.GetAdminSessions(c.Request.Context(), adminID)
	if err != nil {
		h.logger.Error("failed to list sessions", zap.Error(err))
		internalServerErrorResponse(c)
		return
	}

	successResponse(c, http.StatusOK, sessions)
}

// @Summary Get chat history
// @Description Returns the most recent messages of the session in chronological order
// @Tags Chat
// @Security BearerAuth
// @Produce json
// @Param key path string true "Session key"
// @Success 200 {object} successResponseBody "History"
// @Failure 403 {object} errorResponseBody "Access denied"
// @Router /chat/sessions/{key}/history [get]
func (h *Handler) getHistory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		errorResponse(c, http.StatusUnauthorized, err.Error())
		return
	}

	role, err := getUserRole(c)
	if err != nil {
		errorResponse(c, http.StatusUnauthorized, err.Error())
		return
	}

	items, err := h.services.Chat.GetHistory(c.Request.Context(), userID, role, c.Param("key"))
	if err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			forbiddenResponse(c)
			return
		}
		h.logger.Error("failed to load history", zap.Error(err))
		internalServerErrorResponse(c)
		return
	}

	successResponse(c, http.StatusOK, items)
}

// @Summary Mark messages as seen
// @Description Marks the other party's messages as seen and returns their ids
// @Tags Chat
// @Security BearerAuth
// @Produce json
// @Param key path string true "Session key"
// @Success 200 {object} successResponseBody "Seen message ids"
// @Failure 403 {object} errorResponseBody "Access denied"
// @Router /chat/sessions/{key}/seen [post]
func (h *Handler) markMessagesSeen(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		errorResponse(c, http.StatusUnauthorized, err.Error())
		return
	}

	role, err := getUserRole(c)
	if err != nil {
		errorResponse(c, http.StatusUnauthorized, err.Error())
		return
	}

	sessionKey := c.Param("key")
	ids, err := h.services.Chat.MarkMessagesAsSeen(c.Request.Context(), sessionKey, userID, role)
	if err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			forbiddenResponse(c)
			return
		}
		h.logger.Error("failed to mark messages as seen", zap.Error(err))
		internalServerErrorResponse(c)
		return
	}

	if len(ids) > 0 {
		h.hub.BroadcastToSession(sessionKey, ws.EventMessageStatusChanged, gin.H{
			"session_key": sessionKey,
			"message_ids": ids,
			"is_seen":     true,
		})
	}

	successResponse(c, http.StatusOK, gin.H{"message_ids": ids})
}

// @Summary Get session info
// @Description Returns session state for the countdown display
// @Tags Chat
// @Security BearerAuth
// @Produce json
// @Param key path string true "Session key"
// @Success 200 {object} successResponseBody "Session"
// @Failure 404 {object} errorResponseBody "Session not found"
// @Router /chat/sessions/{key} [get]
func (h *Handler) getSessionInfo(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		errorResponse(c, http.StatusUnauthorized, err.Error())
		return
	}

	role, err := getUserRole(c)
	if err != nil {
		errorResponse(c, http.StatusUnauthorized, err.Error())
		return
	}

	session, err := h.services.Chat.GetSessionInfo(c.Request.Context(), c.Param("key"), userID, role)
	if err != nil {
		h.logger.Error("failed to load session info", zap.Error(err))
		internalServerErrorResponse(c)
		return
	}
	if session == nil {
		notFoundResponse(c, "chat session not found")
		return
	}

	successResponse(c, http.StatusOK, toSessionView(session))
}

// @Summary Upload a chat attachment
// @Description Stores an attachment and returns its URL
// @Tags Chat
// @Security BearerAuth
// @Accept mpfd
// @Produce json
// @Param file formData file true "Attachment"
// @Success 201 {object} successResponseBody "File URL"
// @Failure 400 {object} errorResponseBody "Invalid file"
// @Router /chat/upload [post]
func (h *Handler) uploadAttachment(c *gin.Context) {
	if _, err := getUserID(c); err != nil {
		errorResponse(c, http.StatusUnauthorized, err.Error())
		return
	}

	// Object storage is optional; without it the route stays registered but
	// refuses uploads instead of dispatching on a nil interface.
	if h.storage == nil {
		errorResponse(c, http.StatusServiceUnavailable, "attachment uploads are not configured")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequestResponse(c, "file is required")
		return
	}

	if fileHeader.Size > storage.MaxAttachmentSize {
		badRequestResponse(c, "file is too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("failed to open uploaded file", zap.Error(err))
		internalServerErrorResponse(c)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, storage.MaxAttachmentSize+1))
	if err != nil {
		h.logger.Error("failed to read uploaded file", zap.Error(err))
		internalServerErrorResponse(c)
		return
	}
	if len(data) > storage.MaxAttachmentSize {
		badRequestResponse(c, "file is too large")
		return
	}

	url, err := h.storage.UploadFile(c.Request.Context(), data, fileHeader.Filename)
	if err != nil {
		h.logger.Warn("attachment upload rejected", zap.Error(err))
		badRequestResponse(c, err.Error())
		return
	}

	createdResponse(c, gin.H{"url": url})
}
