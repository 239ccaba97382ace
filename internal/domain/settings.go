package domain

import (
	"time"
)

// ChatSettings is the admin-configurable chat policy. Exactly one row exists;
// the repository seeds defaults when the row is missing.
type ChatSettings struct {
	ID                        int64     `json:"-"`
	MaxUserMessageLength      int       `json:"max_user_message_length"`
	MaxSessionDurationMinutes int       `json:"max_session_duration_minutes"`
	UpdatedAt                 time.Time `json:"updated_at"`
	UpdatedByAdminID          *int64    `json:"updated_by_admin_id,omitempty"`
}

const (
	DefaultMaxUserMessageLength      = 500
	DefaultMaxSessionDurationMinutes = 60

	MinUserMessageLength = 10
	MaxUserMessageLength = 5000

	// 0 means unlimited; anything above a day is rejected.
	MaxSessionDurationCapMinutes = 1440
)

type UpdateChatSettingsDTO struct {
	MaxUserMessageLength      *int `json:"max_user_message_length"`
	MaxSessionDurationMinutes *int `json:"max_session_duration_minutes"`
}
