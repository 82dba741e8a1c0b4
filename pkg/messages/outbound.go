package messages

// OutboundMessage is how we wrap responses before sending
// them to the client
type OutboundMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Message types sent to clients.
const (
	TypeInit             = "init"
	TypeTimeUpdate       = "time-update"
	TypeDrawRequested    = "draw-requested"
	TypeGameOver         = "game-over"
	TypeRematchRequested = "rematch-requested"
)

// PlayerInfo identifies one side of a match to the client.
type PlayerInfo struct {
	Username string `json:"username"`
	Rating   int64  `json:"rating"`
}

// InitPayload announces a new (or re-initialized) game to one player.
type InitPayload struct {
	Color       string      `json:"color"`
	Self        PlayerInfo  `json:"self"`
	Opponent    PlayerInfo  `json:"opponent"`
	TimeControl TimeControl `json:"timeControl"`
}

// TimeUpdatePayload maps each username to its remaining clock milliseconds.
type TimeUpdatePayload map[string]int64

// GameOverPayload reports the result and the refreshed ratings.
type GameOverPayload struct {
	Winner         string           `json:"winner"`
	UpdatedRatings map[string]int64 `json:"updatedRatings"`
}
