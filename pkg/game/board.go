package game

import (
	"fmt"
	"strings"

	"github.com/corentings/chess/v2"

	"github.com/chesslive/match-server/internal/color"
	"github.com/chesslive/match-server/pkg/messages"
)

// Board is the rules-engine delegate a session consults for move legality
// and terminal detection.
type Board interface {
	// Apply plays the move, returning an error if it is illegal.
	Apply(mv messages.Move) error
	// IsTerminal reports whether the position ends the game.
	IsTerminal() bool
	// IsDraw reports whether a terminal position is a draw or stalemate.
	IsDraw() bool
	// SideToMove returns the color that may move next.
	SideToMove() color.Color
	// Reset restores the starting position.
	Reset()
}

// chessBoard adapts corentings/chess to the Board interface.
type chessBoard struct {
	game *chess.Game
}

// NewBoard returns a Board starting from the standard position.
func NewBoard() Board {
	return &chessBoard{game: chess.NewGame()}
}

func (b *chessBoard) Apply(mv messages.Move) error {
	uci := strings.ToLower(
		strings.TrimSpace(mv.From) + strings.TrimSpace(mv.To) + strings.TrimSpace(mv.Promotion),
	)
	if len(uci) < 4 {
		return fmt.Errorf("malformed move %q", uci)
	}
	return b.game.PushNotationMove(uci, chess.UCINotation{}, nil)
}

func (b *chessBoard) IsTerminal() bool {
	return b.game.Outcome() != chess.NoOutcome
}

func (b *chessBoard) IsDraw() bool {
	return b.game.Outcome() == chess.Draw
}

func (b *chessBoard) SideToMove() color.Color {
	if b.game.Position().Turn() == chess.White {
		return color.White
	}
	return color.Black
}

func (b *chessBoard) Reset() {
	b.game = chess.NewGame()
}
