package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"broker_mcp/internal/broker"
	"broker_mcp/internal/repository"
)

// SessionCache persists broker sessions sealed with AES-GCM.
type SessionCache struct {
	repo   *repository.SessionRepository
	sealer *broker.Sealer
	logger zerolog.Logger
}

// NewSessionCache creates a SessionCache.
func NewSessionCache(repo *repository.SessionRepository, sealer *broker.Sealer) *SessionCache {
	return &SessionCache{
		repo:   repo,
		sealer: sealer,
		logger: log.With().Str("component", "session_cache").Logger(),
	}
}

var _ broker.SessionStore = (*SessionCache)(nil)

// LoadSession returns the cached session for name, or nil when none is
// stored. A blob that no longer opens (rotated secret) is discarded.
func (c *SessionCache) LoadSession(_ context.Context, name string) (*broker.Session, error) {
	stored, err := c.repo.Get(name)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if stored == nil {
		return nil, nil
	}

	sess, err := c.sealer.OpenSession(stored.Sealed, name)
	if err != nil {
		c.logger.Warn().Err(err).Str("broker", name).Msg("Discarding unreadable session")
		if derr := c.repo.Delete(name); derr != nil {
			c.logger.Warn().Err(derr).Msg("Deleting session failed")
		}
		return nil, nil
	}
	return sess, nil
}

// SaveSession seals s and stores it under name.
func (c *SessionCache) SaveSession(_ context.Context, name string, s *broker.Session) error {
	sealed, err := c.sealer.SealSession(s, name)
	if err != nil {
		return fmt.Errorf("sealing session: %w", err)
	}
	if err := c.repo.Save(name, sealed); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}
