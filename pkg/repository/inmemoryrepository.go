// Package repository tracks live game sessions in memory.
package repository

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chesslive/match-server/pkg/game"
)

// InMemorySessionRepository is an in-memory implementation of the session
// registry: sessions by ID plus a username reverse index, so the router can
// find a player's session in one lookup.
type InMemorySessionRepository struct {
	sessions map[uuid.UUID]*game.Session
	byUser   map[string]uuid.UUID
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository(logger *zap.Logger) *InMemorySessionRepository {
	return &InMemorySessionRepository{
		sessions: make(map[uuid.UUID]*game.Session),
		byUser:   make(map[string]uuid.UUID),
		logger:   logger,
	}
}

// SaveSession registers a session and indexes both usernames.
func (r *InMemorySessionRepository) SaveSession(s *game.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.ID] = s
	for _, username := range s.Usernames() {
		r.byUser[username] = s.ID
	}
	return nil
}

// GetSession retrieves a session by ID
func (r *InMemorySessionRepository) GetSession(id uuid.UUID) (*game.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, errors.New("session not found")
	}
	return s, nil
}

// GetByUsername returns the session a player currently belongs to.
func (r *InMemorySessionRepository) GetByUsername(username string) (*game.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUser[username]
	if !ok {
		return nil, false
	}
	s, ok := r.sessions[id]
	return s, ok
}

// RemoveSession drops a session and its username index entries.
func (r *InMemorySessionRepository) RemoveSession(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return
	}
	for _, username := range s.Usernames() {
		if r.byUser[username] == id {
			delete(r.byUser, username)
		}
	}
	delete(r.sessions, id)

	r.logger.Info("removed game session", zap.String("session_id", id.String()))
}

// ListActiveSessions returns all sessions still in play.
func (r *InMemorySessionRepository) ListActiveSessions() []*game.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []*game.Session
	for _, s := range r.sessions {
		if s.Phase() == game.PhaseActive {
			active = append(active, s)
		}
	}
	return active
}
