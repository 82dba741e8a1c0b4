// Package game implements the per-match session: turn order, countdown
// clocks and the draw/resign/rematch sub-protocols.
package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chesslive/match-server/internal/color"
	"github.com/chesslive/match-server/pkg/events"
	"github.com/chesslive/match-server/pkg/messages"
	"github.com/chesslive/match-server/pkg/rating"
)

// Participant is one side's connection as the session sees it: a stable
// username, a cached rating and a way to push envelopes.
type Participant interface {
	Username() string
	Rating() int64
	SetRating(int64)
	SendJSON(v interface{})
}

// Phase is the lifecycle state of a session.
type Phase string

// A session is Active from init until a terminal event, then GameOver until
// it is destroyed or a mutual rematch re-initializes it.
const (
	PhaseActive   Phase = "active"
	PhaseGameOver Phase = "game_over"
)

// ratingTimeout bounds every call into the rating service so a slow or dead
// backend can never hold up a game-over broadcast.
const ratingTimeout = 2 * time.Second

// settleMode selects how a finalize settles ratings.
type settleMode int

const (
	// settleNone delivers the cached ratings untouched (timeouts).
	settleNone settleMode = iota
	// settleRefresh re-reads both ratings but moves no points (draws).
	settleRefresh
	// settleAdjust moves the configured delta from loser to winner.
	settleAdjust
)

// SessionConfig carries the collaborators and policy knobs a session needs.
type SessionConfig struct {
	TimeControl TimeControl
	// Board defaults to a standard chess board when nil.
	Board Board
	// Ratings may be nil; cached ratings are then used as-is.
	Ratings rating.Service
	// RatingDelta is the points moved from loser to winner. Defaults to 8.
	RatingDelta int64
	// SwapColorsOnRematch flips player1/player2 when re-initializing.
	SwapColorsOnRematch bool
	// ClockTick defaults to one second.
	ClockTick time.Duration

	Publisher *events.Publisher
	Logger    *zap.Logger
}

// Session owns a single match between two connected players. player1 plays
// white and player2 black; turn parity on moveCount selects the mover.
type Session struct {
	ID uuid.UUID

	mu sync.Mutex

	player1 Participant // white
	player2 Participant // black

	board Board
	tc    TimeControl

	clock     *Clock
	remaining map[string]int64 // username -> ms

	moveCount      int
	phase          Phase
	drawOfferedBy  string
	rematchSignals map[string]struct{}

	// life counts init episodes so a stale rating refresh from a previous
	// episode cannot deliver an init envelope into the next one.
	life uint64
	// finalizing is set while a game-over settlement is in flight; at most
	// one settlement runs per life.
	finalizing bool

	ratingDelta   int64
	swapOnRematch bool

	ratings   rating.Service
	publisher *events.Publisher
	logger    *zap.Logger
}

// NewSession creates a session for the two players. Call Start once the
// session is registered so that neither player misses the init envelope.
func NewSession(p1, p2 Participant, cfg SessionConfig) *Session {
	board := cfg.Board
	if board == nil {
		board = NewBoard()
	}
	delta := cfg.RatingDelta
	if delta == 0 {
		delta = 8
	}

	s := &Session{
		ID:             uuid.New(),
		player1:        p1,
		player2:        p2,
		board:          board,
		tc:             cfg.TimeControl,
		phase:          PhaseGameOver,
		rematchSignals: make(map[string]struct{}),
		ratingDelta:    delta,
		swapOnRematch:  cfg.SwapColorsOnRematch,
		ratings:        cfg.Ratings,
		publisher:      cfg.Publisher,
		logger:         cfg.Logger,
	}
	s.clock = NewClock(cfg.ClockTick, s.onClockTick)

	return s
}

// Start resets board and clocks, notifies both players and starts white's
// countdown.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initLocked()

	s.publisher.Publish(events.Event{
		Type:      events.EventSessionCreated,
		SessionID: s.ID.String(),
	})
	s.logger.Info("session started",
		zap.String("session_id", s.ID.String()),
		zap.String("white", s.player1.Username()),
		zap.String("black", s.player2.Username()),
		zap.String("time_control", s.tc.Key()),
	)
}

// HasPlayer reports whether username is one of the session's two sides.
func (s *Session) HasPlayer(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasPlayerLocked(username)
}

// Usernames returns both players' identity keys.
func (s *Session) Usernames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []string{s.player1.Username(), s.player2.Username()}
}

// Phase returns the session's current lifecycle state.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// HandleMove applies a move from sender if it is their turn and the move is
// legal. Out-of-turn and illegal moves are dropped without a response; the
// client UI is trusted to filter most of them.
func (s *Session) HandleMove(sender string, mv messages.Move) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		return
	}
	mover := s.activePlayerLocked()
	if sender != mover.Username() {
		s.logger.Debug("move out of turn",
			zap.String("session_id", s.ID.String()),
			zap.String("sender", sender),
		)
		return
	}
	if err := s.board.Apply(mv); err != nil {
		s.logger.Debug("illegal move",
			zap.String("session_id", s.ID.String()),
			zap.String("sender", sender),
			zap.Error(err),
		)
		return
	}

	if s.board.IsTerminal() {
		s.finishByBoardLocked()
		return
	}

	s.remaining[mover.Username()] += s.tc.IncrementMs()

	opponent := s.opponentLocked(mover.Username())
	opponent.SendJSON(messages.OutboundMessage{
		Type:    messages.TypeMove,
		Payload: messages.MovePayload{Move: mv},
	})

	s.moveCount++
	s.clock.Start(opponent.Username())
}

// HandleOfferDraw records the offer and notifies only the opponent. The
// offer has no timeout; it is cleared when the session re-initializes.
func (s *Session) HandleOfferDraw(sender string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive || !s.hasPlayerLocked(sender) {
		return
	}
	s.drawOfferedBy = sender
	s.opponentLocked(sender).SendJSON(messages.OutboundMessage{
		Type:    messages.TypeDrawRequested,
		Payload: struct{}{},
	})
}

// HandleAcceptDraw ends the game as a draw. Acceptance is not gated on a
// recorded offer: the client only shows the accept control after
// draw-requested, so the server takes it at face value.
func (s *Session) HandleAcceptDraw(sender string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive || !s.hasPlayerLocked(sender) {
		return
	}
	s.finalizeLocked("draw", nil, nil, settleRefresh)
}

// HandleResign ends the game with the other player as winner.
func (s *Session) HandleResign(sender string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive || !s.hasPlayerLocked(sender) {
		return
	}
	winner := s.opponentLocked(sender)
	loser := s.participantLocked(sender)
	s.finalizeLocked(string(s.colorOfLocked(winner)), winner, loser, settleAdjust)
}

// HandleRequestRematch collects rematch signals. The first signal notifies
// the opponent; when both identities are present the session re-initializes
// in place, preserving identity continuity for chat and UI purposes.
// Signals are ignored while the game-over settlement is still in flight.
func (s *Session) HandleRequestRematch(sender string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseGameOver || s.finalizing || !s.hasPlayerLocked(sender) {
		return
	}
	s.rematchSignals[sender] = struct{}{}

	opponent := s.opponentLocked(sender)
	if _, ok := s.rematchSignals[opponent.Username()]; !ok {
		opponent.SendJSON(messages.OutboundMessage{
			Type:    messages.TypeRematchRequested,
			Payload: struct{}{},
		})
		return
	}

	if s.swapOnRematch {
		s.player1, s.player2 = s.player2, s.player1
	}
	s.initLocked()

	s.publisher.Publish(events.Event{
		Type:      events.EventSessionReset,
		SessionID: s.ID.String(),
	})
	s.logger.Info("rematch started", zap.String("session_id", s.ID.String()))
}

// HandleChat relays a chat line to the opponent. Chat is not phase-gated so
// players can keep talking after the game ends.
func (s *Session) HandleChat(sender string, payload messages.ChatPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasPlayerLocked(sender) {
		return
	}
	s.opponentLocked(sender).SendJSON(messages.OutboundMessage{
		Type:    messages.TypeChat,
		Payload: payload,
	})
}

// Terminate tears the session down after a disconnect: the clock stops and
// no further envelopes are produced.
func (s *Session) Terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.phase = PhaseGameOver
	s.life++
	s.clock.Stop()

	s.publisher.Publish(events.Event{
		Type:      events.EventSessionTerminated,
		SessionID: s.ID.String(),
	})
}

// initLocked moves the session into Active: fresh board, full clocks,
// white to move. The init envelope and the clock start are deferred until
// the rating refresh completes so that init carries fresh ratings without
// the lookup ever blocking the caller.
func (s *Session) initLocked() {
	s.board.Reset()
	s.moveCount = 0
	s.drawOfferedBy = ""
	s.rematchSignals = make(map[string]struct{})
	s.remaining = map[string]int64{
		s.player1.Username(): s.tc.InitialMs(),
		s.player2.Username(): s.tc.InitialMs(),
	}
	s.phase = PhaseActive
	s.life++

	if s.ratings == nil {
		s.sendInitLocked()
		s.clock.Start(s.player1.Username())
		return
	}
	go s.refreshAndInit(s.life, s.player1, s.player2)
}

// refreshAndInit refreshes both ratings off the caller's goroutine, then
// delivers the init envelopes and starts white's countdown. A refresh
// outliving its init episode is dropped.
func (s *Session) refreshAndInit(life uint64, p1, p2 Participant) {
	s.refreshRatings(p1, p2)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.life != life || s.phase != PhaseActive {
		return
	}
	s.sendInitLocked()
	s.clock.Start(s.player1.Username())
}

func (s *Session) sendInitLocked() {
	p1 := messages.PlayerInfo{Username: s.player1.Username(), Rating: s.player1.Rating()}
	p2 := messages.PlayerInfo{Username: s.player2.Username(), Rating: s.player2.Rating()}
	tc := messages.TimeControl{Minutes: s.tc.Minutes, Increment: s.tc.Increment}

	s.player1.SendJSON(messages.OutboundMessage{
		Type: messages.TypeInit,
		Payload: messages.InitPayload{
			Color:       string(color.White),
			Self:        p1,
			Opponent:    p2,
			TimeControl: tc,
		},
	})
	s.player2.SendJSON(messages.OutboundMessage{
		Type: messages.TypeInit,
		Payload: messages.InitPayload{
			Color:       string(color.Black),
			Self:        p2,
			Opponent:    p1,
			TimeControl: tc,
		},
	})
}

// finishByBoardLocked resolves a terminal position reported by the board:
// the side left to move has no legal reply, so the other side wins.
func (s *Session) finishByBoardLocked() {
	if s.board.IsDraw() {
		s.finalizeLocked("draw", nil, nil, settleRefresh)
		return
	}

	var winner, loser Participant
	if s.board.SideToMove() == color.White {
		winner, loser = s.player2, s.player1
	} else {
		winner, loser = s.player1, s.player2
	}
	s.finalizeLocked(string(s.colorOfLocked(winner)), winner, loser, settleAdjust)
}

// onClockTick decrements the active player's clock and finalizes on
// timeout. A tick that raced a finalize, or one that survived the clock
// switch after an accepted move, is a no-op: only the current active
// player's clock may ever decrease.
func (s *Session) onClockTick(username string, elapsedMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		return
	}
	if s.activePlayerLocked().Username() != username {
		return
	}

	s.remaining[username] -= elapsedMs
	s.broadcastTimeLocked()

	if s.remaining[username] <= 0 {
		s.remaining[username] = 0
		winner := s.opponentLocked(username)
		loser := s.participantLocked(username)
		// Timeouts carry the cached ratings with no delta applied.
		label := fmt.Sprintf("%s (time)", s.colorOfLocked(winner))
		s.finalizeLocked(label, winner, loser, settleNone)
	}
}

// finalizeLocked ends the game exactly once: the phase flips and the clock
// stops immediately, while rating settlement and the game-over broadcast
// run on their own goroutine so a slow rating backend never blocks the
// caller. The finalizing flag serializes settlement with rematch.
func (s *Session) finalizeLocked(winnerLabel string, winner, loser Participant, mode settleMode) {
	if s.phase == PhaseGameOver {
		return
	}
	s.phase = PhaseGameOver
	s.finalizing = true
	s.clock.Stop()

	go s.settle(winnerLabel, winner, loser, mode)
}

// settle performs the rating side of a finalize and delivers the single
// game-over envelope to both sides. A rating service failure never blocks
// delivery; the broadcast then carries the best-known cached values.
func (s *Session) settle(winnerLabel string, winner, loser Participant, mode settleMode) {
	if s.ratings != nil {
		switch mode {
		case settleAdjust:
			ctx, cancel := context.WithTimeout(context.Background(), ratingTimeout)
			w, l, err := s.ratings.Adjust(ctx, winner.Username(), loser.Username(), s.ratingDelta)
			cancel()
			if err != nil {
				s.logger.Warn("rating adjust failed",
					zap.String("session_id", s.ID.String()),
					zap.Error(err),
				)
			} else {
				winner.SetRating(w)
				loser.SetRating(l)
			}
		case settleRefresh:
			// Draws move no points but the broadcast should carry
			// current values.
			s.refreshRatings(s.participants())
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	payload := messages.GameOverPayload{
		Winner: winnerLabel,
		UpdatedRatings: map[string]int64{
			s.player1.Username(): s.player1.Rating(),
			s.player2.Username(): s.player2.Rating(),
		},
	}
	msg := messages.OutboundMessage{Type: messages.TypeGameOver, Payload: payload}
	s.player1.SendJSON(msg)
	s.player2.SendJSON(msg)

	s.finalizing = false

	s.publisher.Publish(events.Event{
		Type:      events.EventGameOver,
		SessionID: s.ID.String(),
		Payload:   payload,
	})
	s.logger.Info("game over",
		zap.String("session_id", s.ID.String()),
		zap.String("winner", winnerLabel),
	)
}

func (s *Session) broadcastTimeLocked() {
	payload := messages.TimeUpdatePayload{}
	for username, ms := range s.remaining {
		if ms < 0 {
			ms = 0
		}
		payload[username] = ms
	}
	msg := messages.OutboundMessage{Type: messages.TypeTimeUpdate, Payload: payload}
	s.player1.SendJSON(msg)
	s.player2.SendJSON(msg)
}

// refreshRatings pulls current ratings into the cached fields, keeping the
// cached value on any lookup failure. Callers pass the participants rather
// than reading the fields so no lock is held across the lookups.
func (s *Session) refreshRatings(p1, p2 Participant) {
	if s.ratings == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ratingTimeout)
	defer cancel()

	for _, p := range []Participant{p1, p2} {
		r, err := s.ratings.Lookup(ctx, p.Username())
		if err != nil {
			s.logger.Warn("rating lookup failed",
				zap.String("username", p.Username()),
				zap.Error(err),
			)
			continue
		}
		p.SetRating(r)
	}
}

func (s *Session) participants() (Participant, Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player1, s.player2
}

func (s *Session) activePlayerLocked() Participant {
	if s.moveCount%2 == 0 {
		return s.player1
	}
	return s.player2
}

func (s *Session) hasPlayerLocked(username string) bool {
	return username == s.player1.Username() || username == s.player2.Username()
}

func (s *Session) participantLocked(username string) Participant {
	if username == s.player1.Username() {
		return s.player1
	}
	return s.player2
}

func (s *Session) opponentLocked(username string) Participant {
	if username == s.player1.Username() {
		return s.player2
	}
	return s.player1
}

func (s *Session) colorOfLocked(p Participant) color.Color {
	if p.Username() == s.player1.Username() {
		return color.White
	}
	return color.Black
}
