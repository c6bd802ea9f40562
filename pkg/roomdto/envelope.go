package roomdto

import "encoding/json"

// Event names on the websocket.
const (
	EventJoinRoom   = "joinRoom"
	EventStartClock = "startClock"
	EventSubmitMove = "submitMove"
	EventEndTurn    = "endTurn"

	EventRoomInitialized = "roomInitialized"
	EventPlayersChanged  = "playersChanged"
	EventClockStarted    = "clockStarted"
	EventPositionUpdated = "positionUpdated"
	EventMoveRejected    = "moveRejected"
	EventClockUpdated    = "clockUpdated"
	EventGameEnded       = "gameEnded"
	EventJoinRejected    = "joinRejected"
)

// Envelope is every server-to-client frame.
type Envelope struct {
	Event   string `json:"event"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Inbound is every client-to-server frame; Data is decoded per event.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Rejection codes carried in Envelope.Code.
const (
	CodeIllegalMove = "illegal_move"
	CodeNotYourTurn = "not_your_turn"
	CodeNotSeated   = "not_seated"
	CodeGameOver    = "game_over"
	CodeJoinFailed  = "join_failed"
	CodeRoomDenied  = "room_denied"
	CodeBadRequest  = "bad_request"
)

type DomainError struct {
	Code    string
	Message string
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "room error"
}
