package domain

import (
	"time"
)

// PresenceStatus is the derived Online/Idle/Offline classification.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "Online"
	PresenceIdle    PresenceStatus = "Idle"
	PresenceOffline PresenceStatus = "Offline"
)

// UserPresence is one row of the admin presence list.
type UserPresence struct {
	UserID          int64          `json:"user_id"`
	UserNameOrEmail string         `json:"user_name_or_email"`
	Status          PresenceStatus `json:"status"`
	LastSeen        time.Time      `json:"last_seen"`
}

// PresenceChange is emitted when a user's derived status differs from the last
// broadcast one.
type PresenceChange struct {
	UserID   int64          `json:"user_id"`
	Status   PresenceStatus `json:"status"`
	LastSeen time.Time      `json:"last_seen"`
}
