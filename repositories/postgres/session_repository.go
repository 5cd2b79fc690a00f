package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/realtime-jwtauth/models"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned when a connection has no recorded session
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository stores authorized connection sessions
type SessionRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

// RecordSession inserts a session row
func (r *SessionRepository) RecordSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO connection_sessions (id, connection_id, user_id, game_version, payload, authorized_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.ConnectionID,
		session.UserID,
		session.GameVersion,
		[]byte(session.Payload),
		session.AuthorizedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}

	r.logger.Debug("session recorded",
		zap.String("id", session.ID.String()),
		zap.String("connection_id", session.ConnectionID.String()),
		zap.String("user_id", session.UserID))
	return nil
}

// GetByConnectionID returns the latest session of a connection
func (r *SessionRepository) GetByConnectionID(ctx context.Context, connectionID uuid.UUID) (*models.Session, error) {
	query := `
		SELECT id, connection_id, user_id, game_version, payload, authorized_at
		FROM connection_sessions
		WHERE connection_id = $1
		ORDER BY authorized_at DESC
		LIMIT 1
	`

	session := &models.Session{}
	var gameVersion sql.NullString
	var payload []byte

	err := r.db.QueryRowContext(ctx, query, connectionID).Scan(
		&session.ID,
		&session.ConnectionID,
		&session.UserID,
		&gameVersion,
		&payload,
		&session.AuthorizedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, connectionID)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	session.GameVersion = gameVersion.String
	session.Payload = payload
	return session, nil
}
