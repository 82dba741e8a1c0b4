package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chesslive/match-server/pkg/events"
	"github.com/chesslive/match-server/pkg/game"
	"github.com/chesslive/match-server/pkg/matchmaker"
	"github.com/chesslive/match-server/pkg/messages"
	"github.com/chesslive/match-server/pkg/rating"
	"github.com/chesslive/match-server/pkg/repository"
)

// InboundHubMessage are the messages that the hub receives
type InboundHubMessage struct {
	Conn    *Connection             // who sent it
	Message messages.InboundMessage // decoded envelope
}

// Hub tracks all live connections, routes every inbound envelope to the
// matchmaker or the sender's session, and cleans up matchmaking residue and
// sessions on disconnect. One envelope is fully processed before the next
// is dequeued.
type Hub struct {
	mu          sync.RWMutex         // Mutex to protect direct access to the connections map.
	connections map[*Connection]bool // Registered connections

	register   chan *Connection       // Incoming registration
	unregister chan *Connection       // Incoming unregistration
	inbound    chan InboundHubMessage // Channel of inbound messages that the hub routes

	sessions   *repository.InMemorySessionRepository
	matchmaker *matchmaker.Matchmaker
	ratings    rating.Service

	defaultControl game.TimeControl
	defaultRating  int64

	publisher *events.Publisher
	logger    *zap.Logger

	done chan struct{}
}

// NewHub creates a new hub
func NewHub(
	mm *matchmaker.Matchmaker,
	sessions *repository.InMemorySessionRepository,
	ratings rating.Service,
	defaultControl game.TimeControl,
	defaultRating int64,
	publisher *events.Publisher,
	logger *zap.Logger,
) *Hub {
	return &Hub{
		connections:    make(map[*Connection]bool),
		register:       make(chan *Connection),
		unregister:     make(chan *Connection),
		inbound:        make(chan InboundHubMessage),
		sessions:       sessions,
		matchmaker:     mm,
		ratings:        ratings,
		defaultControl: defaultControl,
		defaultRating:  defaultRating,
		publisher:      publisher,
		logger:         logger,
		done:           make(chan struct{}),
	}
}

// Run is the main execution of the hub
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return

		case conn := <-h.register:
			h.registerConnection(conn)

		case conn := <-h.unregister:
			h.unregisterConnection(conn)

		case msg := <-h.inbound:
			h.handleInbound(msg)
		}
	}
}

// Register queues a connection for registration. A connection arriving
// after shutdown is dropped rather than blocking its pump goroutine.
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
	}
}

// Unregister queues a connection for teardown.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Dispatch queues an inbound envelope for routing.
func (h *Hub) Dispatch(msg InboundHubMessage) {
	select {
	case h.inbound <- msg:
	case <-h.done:
	}
}

// Stats reports live counts for the health endpoint.
func (h *Hub) Stats() (connections, waiting, active int) {
	h.mu.RLock()
	connections = len(h.connections)
	h.mu.RUnlock()
	return connections, h.matchmaker.Pending(), len(h.sessions.ListActiveSessions())
}

// Shutdown terminates all active sessions and stops the run loop.
func (h *Hub) Shutdown() {
	for _, s := range h.sessions.ListActiveSessions() {
		s.Terminate()
	}
	close(h.done)
}

func (h *Hub) registerConnection(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[conn] = true
	h.logger.Info("connection registered",
		zap.String("connection_id", conn.ID.String()),
		zap.Int("total", len(h.connections)),
	)
}

// unregisterConnection removes the connection from the registry, from every
// matchmaking queue and room, and drops any session it belonged to.
// Notifying the remaining party is best-effort cleanup, not guaranteed.
func (h *Hub) unregisterConnection(conn *Connection) {
	h.mu.Lock()
	if _, ok := h.connections[conn]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.connections, conn)
	total := len(h.connections)
	h.mu.Unlock()

	if username := conn.Username(); username != "" {
		h.matchmaker.Leave(username)
		if s, ok := h.sessions.GetByUsername(username); ok {
			s.Terminate()
			h.sessions.RemoveSession(s.ID)
		}
	}

	conn.Close()
	h.logger.Info("connection unregistered",
		zap.String("connection_id", conn.ID.String()),
		zap.Int("total", total),
	)
}

// handleInbound routes one decoded envelope. Pairing messages reach the
// matchmaker only while the sender has no session; in-match messages reach
// the sender's session or are dropped with a warning.
func (h *Hub) handleInbound(msg InboundHubMessage) {
	conn := msg.Conn

	switch msg.Message.Type {
	case messages.TypeJoinQueue:
		var payload messages.JoinQueuePayload
		if err := json.Unmarshal(msg.Message.Payload, &payload); err != nil || payload.Username == "" {
			h.logger.Warn("invalid join-queue payload", zap.Error(err))
			return
		}
		if h.inSession(conn) {
			h.logger.Warn("join-queue while in session", zap.String("username", conn.Username()))
			return
		}
		h.identify(conn, payload.Username, payload.Rating)
		h.matchmaker.Leave(payload.Username)

		tc := game.TimeControl{Minutes: payload.TimeControl.Minutes, Increment: payload.TimeControl.Increment}
		if tc.Minutes <= 0 {
			tc = h.defaultControl
		}
		if s := h.matchmaker.Enqueue(conn, tc); s != nil {
			h.startSession(s)
		}

	case messages.TypeJoinRoom:
		var payload messages.JoinRoomPayload
		if err := json.Unmarshal(msg.Message.Payload, &payload); err != nil ||
			payload.Username == "" || payload.RoomID == "" {
			h.logger.Warn("invalid join-room payload", zap.Error(err))
			return
		}
		if h.inSession(conn) {
			h.logger.Warn("join-room while in session", zap.String("username", conn.Username()))
			return
		}
		h.identify(conn, payload.Username, payload.Rating)
		h.matchmaker.Leave(payload.Username)

		if s := h.matchmaker.EnqueueRoom(payload.RoomID, conn); s != nil {
			h.startSession(s)
		}

	case messages.TypeMove:
		var payload messages.MovePayload
		if err := json.Unmarshal(msg.Message.Payload, &payload); err != nil {
			h.logger.Warn("invalid move payload", zap.Error(err))
			return
		}
		if s, ok := h.sessionFor(conn); ok {
			s.HandleMove(conn.Username(), payload.Move)
		}

	case messages.TypeOfferDraw:
		if s, ok := h.sessionFor(conn); ok {
			s.HandleOfferDraw(conn.Username())
		}

	case messages.TypeAcceptDraw:
		if s, ok := h.sessionFor(conn); ok {
			s.HandleAcceptDraw(conn.Username())
		}

	case messages.TypeResign:
		if s, ok := h.sessionFor(conn); ok {
			s.HandleResign(conn.Username())
		}

	case messages.TypeRequestRematch:
		if s, ok := h.sessionFor(conn); ok {
			s.HandleRequestRematch(conn.Username())
		}

	case messages.TypeChat:
		var payload messages.ChatPayload
		if err := json.Unmarshal(msg.Message.Payload, &payload); err != nil ||
			payload.Sender == "" || payload.Message == "" {
			h.logger.Warn("invalid chat payload", zap.Error(err))
			return
		}
		if s, ok := h.sessionFor(conn); ok {
			s.HandleChat(conn.Username(), payload)
		}

	default:
		h.logger.Warn("unknown message type", zap.String("type", msg.Message.Type))
	}
}

// identify records the announced identity on the connection. The claimed
// rating (or the configured default) is cached right away; the rating
// service refreshes it off the routing goroutine so a slow backend never
// stalls message dispatch.
func (h *Hub) identify(conn *Connection, username string, claimed int64) {
	conn.SetUsername(username)

	r := claimed
	if r <= 0 {
		r = h.defaultRating
	}
	conn.SetRating(r)

	if h.ratings == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		looked, err := h.ratings.Lookup(ctx, username)
		if err != nil {
			h.logger.Warn("rating lookup failed",
				zap.String("username", username),
				zap.Error(err),
			)
			return
		}
		conn.SetRating(looked)
	}()
}

func (h *Hub) inSession(conn *Connection) bool {
	username := conn.Username()
	if username == "" {
		return false
	}
	_, ok := h.sessions.GetByUsername(username)
	return ok
}

// sessionFor resolves the sender's session; in-match messages without one
// are dropped with a warning.
func (h *Hub) sessionFor(conn *Connection) (*game.Session, bool) {
	username := conn.Username()
	if username != "" {
		if s, ok := h.sessions.GetByUsername(username); ok {
			return s, true
		}
	}
	h.logger.Warn("in-match message without session",
		zap.String("connection_id", conn.ID.String()),
		zap.String("username", username),
	)
	return nil, false
}

func (h *Hub) startSession(s *game.Session) {
	if err := h.sessions.SaveSession(s); err != nil {
		h.logger.Error("failed to register session", zap.Error(err))
		return
	}
	s.Start()
}
