// Package matchmaker pairs waiting players into game sessions.
package matchmaker

import (
	"sync"

	"go.uber.org/zap"

	"github.com/chesslive/match-server/pkg/game"
)

// SessionFactory builds a session for a matched pair. Supplied by the
// caller so the matchmaker stays free of collaborator wiring.
type SessionFactory func(p1, p2 game.Participant, tc game.TimeControl) *game.Session

// Matchmaker keeps FIFO queues per time-control key plus a room table for
// invite-code pairing, and emits a new session the moment two compatible
// players are available. Players requesting different time controls never
// pair; there is no tie-break beyond arrival order.
type Matchmaker struct {
	mu     sync.Mutex
	queues map[string][]game.Participant // time-control key -> waiting players
	rooms  map[string][]game.Participant // room id -> occupants, capacity 2

	defaultControl game.TimeControl
	newSession     SessionFactory

	logger *zap.Logger
}

// New creates an empty matchmaker.
func New(defaultControl game.TimeControl, factory SessionFactory, logger *zap.Logger) *Matchmaker {
	return &Matchmaker{
		queues:         make(map[string][]game.Participant),
		rooms:          make(map[string][]game.Participant),
		defaultControl: defaultControl,
		newSession:     factory,
		logger:         logger,
	}
}

// Enqueue places p in the queue for tc. If a different player is already
// waiting at the head, both are paired immediately and the new session is
// returned; otherwise p waits and nil is returned.
func (m *Matchmaker) Enqueue(p game.Participant, tc game.TimeControl) *game.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := tc.Key()
	queue := m.queues[key]

	if len(queue) > 0 && queue[0].Username() != p.Username() {
		head := queue[0]
		if len(queue) == 1 {
			delete(m.queues, key)
		} else {
			m.queues[key] = queue[1:]
		}
		m.logger.Info("paired from queue",
			zap.String("time_control", key),
			zap.String("white", head.Username()),
			zap.String("black", p.Username()),
		)
		return m.newSession(head, p, tc)
	}

	m.queues[key] = append(queue, p)
	m.logger.Debug("queued for pairing",
		zap.String("time_control", key),
		zap.String("username", p.Username()),
	)
	return nil
}

// EnqueueRoom joins p to an invite room, creating the room on first join.
// A second distinct player pairs with the default time control and the room
// entry is cleared. A full room or a duplicate occupant is rejected with a
// warning and no state change.
func (m *Matchmaker) EnqueueRoom(roomID string, p game.Participant) *game.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	occupants, ok := m.rooms[roomID]
	if !ok {
		m.rooms[roomID] = []game.Participant{p}
		m.logger.Debug("room created",
			zap.String("room_id", roomID),
			zap.String("username", p.Username()),
		)
		return nil
	}

	if len(occupants) == 1 && occupants[0].Username() != p.Username() {
		delete(m.rooms, roomID)
		m.logger.Info("paired from room",
			zap.String("room_id", roomID),
			zap.String("white", occupants[0].Username()),
			zap.String("black", p.Username()),
		)
		return m.newSession(occupants[0], p, m.defaultControl)
	}

	m.logger.Warn("room full or duplicate occupant",
		zap.String("room_id", roomID),
		zap.String("username", p.Username()),
	)
	return nil
}

// Leave removes username from every queue and room it occupies. Idempotent.
func (m *Matchmaker) Leave(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, queue := range m.queues {
		kept := queue[:0]
		for _, waiting := range queue {
			if waiting.Username() != username {
				kept = append(kept, waiting)
			}
		}
		if len(kept) == 0 {
			delete(m.queues, key)
		} else {
			m.queues[key] = kept
		}
	}

	for roomID, occupants := range m.rooms {
		kept := occupants[:0]
		for _, occ := range occupants {
			if occ.Username() != username {
				kept = append(kept, occ)
			}
		}
		if len(kept) == 0 {
			delete(m.rooms, roomID)
		} else {
			m.rooms[roomID] = kept
		}
	}
}

// Waiting returns how many players sit in the queue for tc.
func (m *Matchmaker) Waiting(tc game.TimeControl) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[tc.Key()])
}

// Pending returns the total number of players waiting across all queues.
// Reported by the health endpoint.
func (m *Matchmaker) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, queue := range m.queues {
		total += len(queue)
	}
	return total
}
