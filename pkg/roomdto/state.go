package roomdto

type Participant struct {
	DisplayName  string `json:"displayName"`
	AvatarGlyph  string `json:"avatarGlyph"`
	ConnectionID string `json:"connectionId"`
}

// Players maps color to occupant; an empty seat is null.
type Players struct {
	White *Participant `json:"white"`
	Black *Participant `json:"black"`
}

type Timers struct {
	White float64 `json:"white"`
	Black float64 `json:"black"`
}

type ClockState struct {
	Timers       Timers `json:"timers"`
	TurnActive   string `json:"turnActive"`
	ClockRunning bool   `json:"clockRunning"`
	// Seq increases with every clock change of the room.
	Seq          uint64 `json:"seq,omitempty"`
}

type GameEnded struct {
	Reason string `json:"reason"`
	// Winner is "white", "black" or "draw".
	Winner string `json:"winner"`
}

// RoomState is the full view of a room, as served by GET /rooms/{id}.
type RoomState struct {
	RoomID       string     `json:"roomId"`
	PositionFEN  string     `json:"positionFEN"`
	HistorySAN   []string   `json:"historySAN"`
	Players      Players    `json:"players"`
	Timers       Timers     `json:"timers"`
	TurnActive   string     `json:"turnActive"`
	SideToMove   string     `json:"sideToMove"`
	Started      bool       `json:"started"`
	ClockRunning bool       `json:"clockRunning"`
	Phase        string     `json:"phase"`
	Opening      string     `json:"opening,omitempty"`
	Ended        *GameEnded `json:"ended"`
}

// RoomInitialized is sent to a connection right after it joins.
// AssignedColor is null for spectators.
type RoomInitialized struct {
	RoomState
	AssignedColor *string `json:"assignedColor"`
}

type MoveDetail struct {
	SAN       string `json:"san"`
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	Color     string `json:"color"`
	Ply       int    `json:"ply"`
	Capture   bool   `json:"capture"`
	Castle    bool   `json:"castle"`
	Check     bool   `json:"check"`
	Checkmate bool   `json:"checkmate"`
	Opening   string `json:"opening,omitempty"`
}

type PositionUpdated struct {
	PositionFEN    string     `json:"positionFEN"`
	HistorySAN     []string   `json:"historySAN"`
	SoundCategory  string     `json:"soundCategory"`
	LastMoveDetail MoveDetail `json:"lastMoveDetail"`
}

type Health struct {
	Status string `json:"status"`
	Rooms  int    `json:"rooms"`
}
