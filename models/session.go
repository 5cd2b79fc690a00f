package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Session records that a connection has been authorized as a user
type Session struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	ConnectionID uuid.UUID       `json:"connection_id" db:"connection_id"`
	UserID       string          `json:"user_id" db:"user_id"`
	GameVersion  string          `json:"game_version,omitempty" db:"game_version"`
	Payload      json.RawMessage `json:"payload" db:"payload"`
	AuthorizedAt time.Time       `json:"authorized_at" db:"authorized_at"`
}

// TableName returns the table name for the Session model
func (Session) TableName() string {
	return "connection_sessions"
}

// NewSession creates a new Session instance
func NewSession(connectionID uuid.UUID, userID, gameVersion string, payload json.RawMessage) *Session {
	return &Session{
		ID:           uuid.New(),
		ConnectionID: connectionID,
		UserID:       userID,
		GameVersion:  gameVersion,
		Payload:      payload,
		AuthorizedAt: time.Now().UTC(),
	}
}
