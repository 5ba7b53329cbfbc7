package repository

import (
	"database/sql"
	"errors"

	"broker_mcp/internal/database"
	"broker_mcp/internal/models"
)

// SessionRepository stores one sealed session per broker.
type SessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Get returns the stored session for broker, or nil when there is none.
func (r *SessionRepository) Get(broker string) (*models.StoredSession, error) {
	s := &models.StoredSession{}
	err := r.db.QueryRow(`
		SELECT broker, sealed, updated_at
		FROM sessions
		WHERE broker = ?
	`, broker).Scan(&s.Broker, &s.Sealed, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Save inserts or replaces the sealed session for broker.
func (r *SessionRepository) Save(broker string, sealed []byte) error {
	_, err := r.db.Exec(`
		INSERT INTO sessions (broker, sealed, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(broker) DO UPDATE SET sealed = excluded.sealed, updated_at = CURRENT_TIMESTAMP
	`, broker, sealed)
	return err
}

// Delete removes the stored session for broker. Deleting a missing
// session is not an error.
func (r *SessionRepository) Delete(broker string) error {
	_, err := r.db.Exec(`DELETE FROM sessions WHERE broker = ?`, broker)
	return err
}
