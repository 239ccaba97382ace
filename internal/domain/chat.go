package domain

import (
	"time"
)

// MessageType represents the type of a chat message
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeVoice  MessageType = "voice"
	MessageTypeSystem MessageType = "system"
)

// ChatSession represents a conversation between one user and one (possibly
// unassigned) admin. SessionKey is the opaque identifier exposed to clients and
// used as the websocket group name; the numeric ID never leaves the backend.
type ChatSession struct {
	ID                    int64      `json:"-"`
	SessionKey            string     `json:"session_key"`
	UserID                int64      `json:"user_id"`
	AdminID               *int64     `json:"admin_id,omitempty"`
	IsActive              bool       `json:"is_active"`
	CreatedAt             time.Time  `json:"created_at"`
	StartedAt             *time.Time `json:"started_at,omitempty"`
	MaxDurationMinutes    int        `json:"max_duration_minutes"`
	LastUserMessageAt     time.Time  `json:"last_user_message_at"`
	IdleTerminationSentAt *time.Time `json:"-"`
}

// RemainingSeconds reports how long the session may still run, or -1 when the
// duration is unlimited.
func (s *ChatSession) RemainingSeconds(now time.Time) int64 {
	if s.MaxDurationMinutes <= 0 || s.StartedAt == nil {
		return -1
	}
	deadline := s.StartedAt.Add(time.Duration(s.MaxDurationMinutes) * time.Minute)
	remaining := int64(deadline.Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether the session exceeded its duration cap. Sessions with
// no cap or no start time never expire.
func (s *ChatSession) Expired(now time.Time) bool {
	if s.MaxDurationMinutes <= 0 || s.StartedAt == nil {
		return false
	}
	return now.Sub(*s.StartedAt) >= time.Duration(s.MaxDurationMinutes)*time.Minute
}

// Message is a single entry in a session's append-only log. Immutable after
// creation except for the IsSeen flip.
type Message struct {
	ID            int64       `json:"id"`
	ChatSessionID int64       `json:"-"`
	SenderID      int64       `json:"sender_id"`
	Content       string      `json:"content"`
	Type          MessageType `json:"type"`
	IsSeen        bool        `json:"is_seen"`
	CreatedAt     time.Time   `json:"created_at"`
}

// SendMessageCommand carries a validated-at-the-core send request.
type SendMessageCommand struct {
	ChatSessionKey string
	SenderID       int64
	Role           UserRole
	Content        string
	Type           MessageType
}

// SendMessageResult is what the transport broadcasts after a successful send.
// SessionUserID and UnreadCountForAdmin are populated only for user-authored
// messages so the admin inbox badge can be updated.
type SendMessageResult struct {
	Message             *Message
	SessionKey          string
	Role                UserRole
	SessionUserID       *int64
	UnreadCountForAdmin *int64
}

// ChatSessionSummary is one row of the admin inbox: every user appears, with
// session key and unread count when an active session exists.
type ChatSessionSummary struct {
	UserID          int64     `json:"user_id"`
	UserNameOrEmail string    `json:"user_name_or_email"`
	ChatSessionKey  *string   `json:"chat_session_id"`
	UnreadCount     int64     `json:"unread_count"`
	IsOnline        bool      `json:"is_online"`
	LastSeen        time.Time `json:"last_seen"`
}

// ChatHistoryItem is a history entry enriched with the sender's role.
type ChatHistoryItem struct {
	ID        int64       `json:"id"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
	IsSeen    bool        `json:"is_seen"`
	Role      UserRole    `json:"role"`
	SenderID  int64       `json:"sender_id"`
	Type      MessageType `json:"message_type"`
}

// IdleTerminationResult describes the system message appended when a session is
// closed for user silence.
type IdleTerminationResult struct {
	SessionKey string
	MessageID  int64
	SenderID   int64
	Content    string
	CreatedAt  time.Time
}

// IdleTerminationNotice is the fixed system message text.
const IdleTerminationNotice = "This chat was closed automatically due to inactivity."
