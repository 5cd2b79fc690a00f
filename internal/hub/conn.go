package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upb/realtime-jwtauth/jwtauth"
	"github.com/upb/realtime-jwtauth/models"
	"go.uber.org/zap"
)

// Conn is a client connection held by a Hub
type Conn struct {
	id  uuid.UUID
	hub *Hub

	mu           sync.Mutex
	authorized   bool
	userID       string
	gameVersion  string
	payload      *jwtauth.UserPayload
	authorizedAt time.Time
}

// State is a snapshot of a connection
type State struct {
	ID           uuid.UUID      `json:"id"`
	Authorized   bool           `json:"authorized"`
	UserID       string         `json:"user_id,omitempty"`
	GameVersion  string         `json:"game_version,omitempty"`
	User         map[string]any `json:"user,omitempty"`
	AuthorizedAt *time.Time     `json:"authorized_at,omitempty"`
}

// ID returns the connection id
func (c *Conn) ID() uuid.UUID {
	return c.id
}

// Authorize implements jwtauth.Connection. A connection can be authorized once;
// when the hub has a session recorder the session is persisted first.
func (c *Conn) Authorize(ctx context.Context, userID, gameVersion string, payload *jwtauth.UserPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.authorized {
		return ErrAlreadyAuthorized
	}

	if c.hub.recorder != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode user payload: %w", err)
		}
		session := models.NewSession(c.id, userID, gameVersion, body)
		if err := c.hub.recorder.RecordSession(ctx, session); err != nil {
			return fmt.Errorf("record session: %w", err)
		}
	}

	c.authorized = true
	c.userID = userID
	c.gameVersion = gameVersion
	c.payload = payload
	c.authorizedAt = time.Now().UTC()

	var selected []string
	if payload != nil {
		selected = payload.SelectedGroups
	}
	c.hub.logger.Info("connection authorized",
		zap.String("connection_id", c.id.String()),
		zap.String("user_id", userID),
		zap.String("game_version", gameVersion),
		zap.Strings("selected_groups", selected))
	return nil
}

// Authorized reports whether the connection has been authorized
func (c *Conn) Authorized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authorized
}

// UserID returns the user the connection acts as, or "" before authorization
func (c *Conn) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Payload returns the user payload attached at authorization
func (c *Conn) Payload() *jwtauth.UserPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payload
}

// State returns a snapshot of the connection
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := State{
		ID:          c.id,
		Authorized:  c.authorized,
		UserID:      c.userID,
		GameVersion: c.gameVersion,
	}
	if c.authorized {
		at := c.authorizedAt
		state.AuthorizedAt = &at
	}
	if c.payload != nil {
		state.User = c.payload.Fields()
	}
	return state
}

var _ jwtauth.Connection = (*Conn)(nil)
