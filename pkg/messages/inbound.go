package messages

import "encoding/json"

// InboundMessage is the generic wrapper for messages coming from the client.
// The "type" field tells us the action; "payload" is the data we parse further.
type InboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Message types accepted from clients.
const (
	TypeJoinQueue      = "join-queue"
	TypeJoinRoom       = "join-room"
	TypeMove           = "move"
	TypeOfferDraw      = "offer-draw"
	TypeAcceptDraw     = "accept-draw"
	TypeResign         = "resign"
	TypeRequestRematch = "request-rematch"
	TypeChat           = "chat"
)

// TimeControl mirrors the clock settings as they travel on the wire.
type TimeControl struct {
	Minutes   int `json:"minutes"`
	Increment int `json:"increment"`
}

// JoinQueuePayload enters the sender into a matchmaking queue.
type JoinQueuePayload struct {
	Username    string      `json:"username"`
	Rating      int64       `json:"rating"`
	TimeControl TimeControl `json:"timeControl"`
}

// JoinRoomPayload joins (or creates) an invite room.
type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	Rating   int64  `json:"rating"`
}

// Move is a board move exactly as the client UI produces it.
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// MovePayload carries a single move attempt.
type MovePayload struct {
	Move Move `json:"move"`
}

// ChatPayload relays a chat line between the two players of a match.
type ChatPayload struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}
